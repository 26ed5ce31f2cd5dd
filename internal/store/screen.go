package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
)

// ScreenStore defines the interface for screen persistence.
//
// Screens are addressed by their local ID within one installation and by
// their stable UUID across installations.
type ScreenStore interface {
	// Create saves a new screen and assigns its local ID.
	// Returns ErrUUIDExists if a screen with the same UUID is already stored.
	// Returns validation errors from the domain Screen if data is invalid.
	Create(ctx context.Context, screen *domain.Screen) error

	// GetByID retrieves a screen by its local ID.
	// Returns ErrScreenNotFound if the screen does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Screen, error)

	// GetByUUID retrieves a screen by its stable UUID.
	// Returns ErrScreenNotFound if the screen does not exist.
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Screen, error)

	// Update saves all mutable fields of an existing screen, including its
	// ordered category links. CreatedAt and UUID are never changed.
	// Returns ErrScreenNotFound if the screen does not exist.
	Update(ctx context.Context, screen *domain.Screen) error

	// Delete removes a screen and its category links.
	// Returns ErrScreenNotFound if the screen does not exist.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored screens.
	Count(ctx context.Context) (int, error)

	// WithTx returns a new ScreenStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ScreenStore
}

// ScreenCategoryStore defines the interface for screen category persistence.
type ScreenCategoryStore interface {
	// Create saves a new category and assigns its local ID.
	Create(ctx context.Context, category *domain.ScreenCategory) error

	// GetByID retrieves a category by its local ID.
	// Returns ErrScreenCategoryNotFound if the category does not exist.
	GetByID(ctx context.Context, id int64) (*domain.ScreenCategory, error)

	// GetByUUID retrieves a category by its stable UUID.
	// Returns ErrScreenCategoryNotFound if the category does not exist.
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ScreenCategory, error)

	// Update saves the name and status of an existing category.
	Update(ctx context.Context, category *domain.ScreenCategory) error

	// Delete removes a category. Links from screens are removed with it.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored categories.
	Count(ctx context.Context) (int, error)

	// WithTx returns a new ScreenCategoryStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ScreenCategoryStore
}
