// Package postgres provides PostgreSQL-backed implementations of the
// account storage interfaces defined in the internal/store package, plus
// the embedded schema migrations. It handles query execution, error
// mapping, and data mapping between domain entities and database records.
package postgres
