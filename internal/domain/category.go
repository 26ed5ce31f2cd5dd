package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryStatus is the publication state shared by screen and script categories.
type CategoryStatus string

// Possible category status values
const (
	CategoryStatusActive   CategoryStatus = "ACTIVE"
	CategoryStatusInactive CategoryStatus = "INACTIVE"
)

// MaxCategoryNameLength is the longest name a category may carry.
const MaxCategoryNameLength = 100

// Common validation errors for categories
var (
	ErrEmptyCategoryUUID     = errors.New("category uuid cannot be empty")
	ErrEmptyCategoryName     = errors.New("category name cannot be empty")
	ErrCategoryNameTooLong   = fmt.Errorf("category name must be at most %d characters", MaxCategoryNameLength)
	ErrInvalidCategoryStatus = errors.New("invalid category status")
)

// ScreenCategory groups screens in the designer.
type ScreenCategory struct {
	ID        int64          `json:"id"`
	UUID      uuid.UUID      `json:"uuid"`
	Name      string         `json:"name"`
	Status    CategoryStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewScreenCategory creates an active ScreenCategory with a fresh stable UUID.
func NewScreenCategory(name string) (*ScreenCategory, error) {
	now := time.Now().UTC()
	c := &ScreenCategory{
		UUID:      uuid.New(),
		Name:      name,
		Status:    CategoryStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the ScreenCategory has valid data.
func (c *ScreenCategory) Validate() error {
	return validateCategory(c.UUID, c.Name, c.Status)
}

// ScriptCategory groups scripts in the designer.
type ScriptCategory struct {
	ID        int64          `json:"id"`
	UUID      uuid.UUID      `json:"uuid"`
	Name      string         `json:"name"`
	Status    CategoryStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewScriptCategory creates an active ScriptCategory with a fresh stable UUID.
func NewScriptCategory(name string) (*ScriptCategory, error) {
	now := time.Now().UTC()
	c := &ScriptCategory{
		UUID:      uuid.New(),
		Name:      name,
		Status:    CategoryStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the ScriptCategory has valid data.
func (c *ScriptCategory) Validate() error {
	return validateCategory(c.UUID, c.Name, c.Status)
}

func validateCategory(id uuid.UUID, name string, status CategoryStatus) error {
	if id == uuid.Nil {
		return NewValidationError("uuid", "is required", ErrEmptyCategoryUUID)
	}
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "is required", ErrEmptyCategoryName)
	}
	if len(name) > MaxCategoryNameLength {
		return NewValidationError("name", "is too long", ErrCategoryNameTooLong)
	}
	switch status {
	case CategoryStatusActive, CategoryStatusInactive:
		return nil
	default:
		return NewValidationError("status", "must be ACTIVE or INACTIVE", ErrInvalidCategoryStatus)
	}
}
