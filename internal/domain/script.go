package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScriptLanguage is the executor a script runs on.
type ScriptLanguage string

// Supported script languages
const (
	ScriptLanguagePHP        ScriptLanguage = "php"
	ScriptLanguageLua        ScriptLanguage = "lua"
	ScriptLanguageJavaScript ScriptLanguage = "javascript"
	ScriptLanguagePython     ScriptLanguage = "python"
	ScriptLanguageGo         ScriptLanguage = "go"
)

// Common validation errors for Script
var (
	ErrEmptyScriptUUID       = errors.New("script uuid cannot be empty")
	ErrEmptyScriptTitle      = errors.New("script title cannot be empty")
	ErrInvalidScriptLanguage = errors.New("invalid script language")
	ErrInvalidScriptTimeout  = errors.New("script timeout cannot be negative")
)

// Script is a piece of code run by a script task or a screen watcher.
type Script struct {
	ID          int64          `json:"id"`
	UUID        uuid.UUID      `json:"uuid"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Language    ScriptLanguage `json:"language"`
	Code        string         `json:"code"`
	// Timeout is the execution limit in seconds; zero means no limit.
	Timeout    int       `json:"timeout"`
	CategoryID *int64    `json:"script_category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewScript creates a Script with a fresh stable UUID.
func NewScript(title string, language ScriptLanguage, code string) (*Script, error) {
	now := time.Now().UTC()
	s := &Script{
		UUID:      uuid.New(),
		Title:     title,
		Language:  language,
		Code:      code,
		Timeout:   60,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the Script has valid data.
func (s *Script) Validate() error {
	if s.UUID == uuid.Nil {
		return NewValidationError("uuid", "is required", ErrEmptyScriptUUID)
	}
	if strings.TrimSpace(s.Title) == "" {
		return NewValidationError("title", "is required", ErrEmptyScriptTitle)
	}
	if !isValidScriptLanguage(s.Language) {
		return NewValidationError("language", "is not supported", ErrInvalidScriptLanguage)
	}
	if s.Timeout < 0 {
		return NewValidationError("timeout", "cannot be negative", ErrInvalidScriptTimeout)
	}
	return nil
}

func isValidScriptLanguage(l ScriptLanguage) bool {
	switch l {
	case ScriptLanguagePHP, ScriptLanguageLua, ScriptLanguageJavaScript,
		ScriptLanguagePython, ScriptLanguageGo:
		return true
	default:
		return false
	}
}
