package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScreenType identifies how a screen is rendered.
type ScreenType string

// Possible screen types
const (
	ScreenTypeForm           ScreenType = "FORM"
	ScreenTypeDisplay        ScreenType = "DISPLAY"
	ScreenTypeEmail          ScreenType = "EMAIL"
	ScreenTypeConversational ScreenType = "CONVERSATIONAL"
)

// NestedScreenComponent is the form component that embeds another screen.
const NestedScreenComponent = "FormNestedScreen"

// Common validation errors for Screen
var (
	ErrEmptyScreenUUID       = errors.New("screen uuid cannot be empty")
	ErrEmptyScreenTitle      = errors.New("screen title cannot be empty")
	ErrInvalidScreenType     = errors.New("invalid screen type")
	ErrInvalidScreenConfig   = errors.New("screen config must be a JSON array")
	ErrInvalidScreenWatchers = errors.New("screen watchers must be a JSON array")
	ErrInvalidTranslations   = errors.New("screen translations must be a JSON object")
)

// translatableKeys are the item config keys whose values are shown to end users.
var translatableKeys = []string{"label", "placeholder", "helper", "content"}

// Screen is a form or display definition used by human tasks.
//
// Config holds the pages of the form as a JSON array; Watchers holds the
// watcher definitions, each of which may name a script via script_id.
type Screen struct {
	ID           int64           `json:"id"`
	UUID         uuid.UUID       `json:"uuid"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Type         ScreenType      `json:"type"`
	Config       json.RawMessage `json:"config"`
	Computed     json.RawMessage `json:"computed"`
	Watchers     json.RawMessage `json:"watchers"`
	CustomCSS    string          `json:"custom_css"`
	CategoryIDs  []int64         `json:"screen_category_ids"`
	Translations json.RawMessage `json:"translations"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewScreen creates a form Screen with a fresh stable UUID and empty config.
func NewScreen(title string, screenType ScreenType) (*Screen, error) {
	now := time.Now().UTC()
	s := &Screen{
		UUID:         uuid.New(),
		Title:        title,
		Type:         screenType,
		Config:       json.RawMessage(`[]`),
		Computed:     json.RawMessage(`[]`),
		Watchers:     json.RawMessage(`[]`),
		Translations: json.RawMessage(`{}`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the Screen has valid data.
func (s *Screen) Validate() error {
	if s.UUID == uuid.Nil {
		return NewValidationError("uuid", "is required", ErrEmptyScreenUUID)
	}
	if strings.TrimSpace(s.Title) == "" {
		return NewValidationError("title", "is required", ErrEmptyScreenTitle)
	}
	switch s.Type {
	case ScreenTypeForm, ScreenTypeDisplay, ScreenTypeEmail, ScreenTypeConversational:
	default:
		return NewValidationError("type", "is not supported", ErrInvalidScreenType)
	}
	if !isScreenConfig(s.Config) {
		return NewValidationError("config", "must be an array of pages or an object with an items array", ErrInvalidScreenConfig)
	}
	if !isJSONKind(s.Watchers, '[') {
		return NewValidationError("watchers", "must be an array", ErrInvalidScreenWatchers)
	}
	if !isJSONKind(s.Translations, '{') {
		return NewValidationError("translations", "must be an object", ErrInvalidTranslations)
	}
	return nil
}

// isJSONKind reports whether raw is empty or valid JSON starting with open.
func isJSONKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	return trimmed[0] == open && json.Valid(trimmed)
}

// isScreenConfig reports whether raw is empty, a JSON array of pages, or a
// single-page object whose items key holds an array.
func isScreenConfig(raw json.RawMessage) bool {
	if isJSONKind(raw, '[') {
		return true
	}
	if !isJSONKind(raw, '{') {
		return false
	}
	var page struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return false
	}
	items := bytes.TrimSpace(page.Items)
	return len(items) > 0 && items[0] == '['
}

// NestedScreenIDs returns the ids of screens embedded through nested screen
// components, in config order and without duplicates.
func (s *Screen) NestedScreenIDs() ([]int64, error) {
	config, err := decodeJSON(s.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreenConfig, err)
	}

	var ids []int64
	seen := make(map[int64]bool)
	WalkItems(config, func(item map[string]any) {
		if item["component"] != NestedScreenComponent {
			return
		}
		cfg, ok := item["config"].(map[string]any)
		if !ok {
			return
		}
		id, ok := AsInt64(cfg["screen"])
		if !ok || id <= 0 || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids, nil
}

// TranslatableStrings returns the user-facing strings of the screen in config order.
func (s *Screen) TranslatableStrings() ([]string, error) {
	config, err := decodeJSON(s.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreenConfig, err)
	}

	var out []string
	seen := make(map[string]bool)
	WalkItems(config, func(item map[string]any) {
		cfg, ok := item["config"].(map[string]any)
		if !ok {
			return
		}
		for _, key := range translatableKeys {
			text, ok := cfg[key].(string)
			if !ok || strings.TrimSpace(text) == "" || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
		}
	})
	return out, nil
}

// TranslationsFor returns the stored translations for language.
func (s *Screen) TranslationsFor(language string) (map[string]string, error) {
	all, err := s.allTranslations()
	if err != nil {
		return nil, err
	}
	return all[language], nil
}

// SetTranslations replaces the translations for language and bumps UpdatedAt.
func (s *Screen) SetTranslations(language string, values map[string]string) error {
	all, err := s.allTranslations()
	if err != nil {
		return err
	}
	all[language] = values

	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode translations: %w", err)
	}
	s.Translations = raw
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Screen) allTranslations() (map[string]map[string]string, error) {
	all := make(map[string]map[string]string)
	if len(bytes.TrimSpace(s.Translations)) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(s.Translations, &all); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTranslations, err)
	}
	if all == nil {
		all = make(map[string]map[string]string)
	}
	return all, nil
}

// WalkItems calls fn for every JSON object in v, depth-first in document order.
func WalkItems(v any, fn func(map[string]any)) {
	switch node := v.(type) {
	case []any:
		for _, child := range node {
			WalkItems(child, fn)
		}
	case map[string]any:
		fn(node)
		for _, key := range sortedKeys(node) {
			WalkItems(node[key], fn)
		}
	}
}

// AsInt64 converts a decoded JSON or YAML scalar into an int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeJSON(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
