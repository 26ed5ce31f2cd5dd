package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/bpm-api/internal/store"
)

// Repository bundles the PostgreSQL stores of one connection pool.
// WithinTx hands the callback a Repository whose stores share one transaction.
type Repository struct {
	db *sql.DB

	screens          store.ScreenStore
	screenCategories store.ScreenCategoryStore
	scripts          store.ScriptStore
	scriptCategories store.ScriptCategoryStore
	tasks            store.TaskStore
	processRequests  store.ProcessRequestStore
	users            store.UserStore
}

// NewRepository creates a Repository on db.
func NewRepository(db *sql.DB, bcryptCost int, logger *slog.Logger) *Repository {
	return &Repository{
		db:               db,
		screens:          NewPostgresScreenStore(db, logger),
		screenCategories: NewPostgresScreenCategoryStore(db, logger),
		scripts:          NewPostgresScriptStore(db, logger),
		scriptCategories: NewPostgresScriptCategoryStore(db, logger),
		tasks:            NewPostgresTaskStore(db, logger),
		processRequests:  NewPostgresProcessRequestStore(db, logger),
		users:            NewPostgresUserStore(db, bcryptCost, logger),
	}
}

var (
	_ store.Repository = (*Repository)(nil)
	_ store.Transactor = (*Repository)(nil)
)

func (r *Repository) Screens() store.ScreenStore                  { return r.screens }
func (r *Repository) ScreenCategories() store.ScreenCategoryStore { return r.screenCategories }
func (r *Repository) Scripts() store.ScriptStore                  { return r.scripts }
func (r *Repository) ScriptCategories() store.ScriptCategoryStore { return r.scriptCategories }
func (r *Repository) Tasks() store.TaskStore                      { return r.tasks }
func (r *Repository) ProcessRequests() store.ProcessRequestStore  { return r.processRequests }
func (r *Repository) Users() store.UserStore                      { return r.users }

// WithinTx implements store.Transactor.
func (r *Repository) WithinTx(ctx context.Context, fn store.RepoFn) error {
	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, r.withTx(tx))
	})
}

func (r *Repository) withTx(tx *sql.Tx) *Repository {
	return &Repository{
		db:               r.db,
		screens:          r.screens.WithTx(tx),
		screenCategories: r.screenCategories.WithTx(tx),
		scripts:          r.scripts.WithTx(tx),
		scriptCategories: r.scriptCategories.WithTx(tx),
		tasks:            r.tasks.WithTx(tx),
		processRequests:  r.processRequests.WithTx(tx),
		users:            r.users.WithTx(tx),
	}
}
