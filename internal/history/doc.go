// Package history persists completed sort runs and remembered preferences in
// a SQLite database under the state directory.
//
// The schema is embedded and versioned; a database written by an
// incompatible version is rejected with ErrSchemaMismatch instead of being
// migrated. Writes retry briefly when another process holds the database.
package history
