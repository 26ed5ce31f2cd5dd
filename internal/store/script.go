package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
)

// ScriptStore defines the interface for script persistence.
type ScriptStore interface {
	// Create saves a new script and assigns its local ID.
	// Returns ErrUUIDExists if a script with the same UUID is already stored.
	// Returns store.ErrInvalidEntity if the referenced category does not exist.
	Create(ctx context.Context, script *domain.Script) error

	// GetByID retrieves a script by its local ID.
	// Returns ErrScriptNotFound if the script does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Script, error)

	// GetByUUID retrieves a script by its stable UUID.
	// Returns ErrScriptNotFound if the script does not exist.
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Script, error)

	// Update saves all mutable fields of an existing script.
	Update(ctx context.Context, script *domain.Script) error

	// Delete removes a script.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored scripts.
	Count(ctx context.Context) (int, error)

	// WithTx returns a new ScriptStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ScriptStore
}

// ScriptCategoryStore defines the interface for script category persistence.
type ScriptCategoryStore interface {
	Create(ctx context.Context, category *domain.ScriptCategory) error
	GetByID(ctx context.Context, id int64) (*domain.ScriptCategory, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ScriptCategory, error)
	Update(ctx context.Context, category *domain.ScriptCategory) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	WithTx(tx *sql.Tx) ScriptCategoryStore
}
