package store

import "context"

// Repository groups the stores of one connection or transaction.
type Repository interface {
	Screens() ScreenStore
	ScreenCategories() ScreenCategoryStore
	Scripts() ScriptStore
	ScriptCategories() ScriptCategoryStore
	Tasks() TaskStore
	ProcessRequests() ProcessRequestStore
	Users() UserStore
}

// RepoFn is a function that executes against a transactional Repository.
type RepoFn func(ctx context.Context, repo Repository) error

// Transactor runs a unit of work against a Repository bound to a single
// transaction. The transaction is committed if fn returns nil and rolled
// back otherwise, so callers never observe partial writes.
type Transactor interface {
	WithinTx(ctx context.Context, fn RepoFn) error
}
