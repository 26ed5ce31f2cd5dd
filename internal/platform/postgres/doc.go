// Package postgres provides PostgreSQL implementations of the store
// interfaces and the Repository used for transactional imports.
//
// All SQL is hand-written and executed through database/sql with the pgx
// driver. Schema changes live in migrations/ and are embedded for goose.
package postgres
