// Package sqlite provides a SQLite-backed implementation of driven.IndexStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. The index header lives in a single-row index_meta
// table and every embedding record is a row in records, with its vector
// stored as a little-endian float32 blob.
//
// # Data Location
//
// By default, the database is stored at ~/.ragkit/data/index.db
//
// # Atomicity
//
// Save replaces the previous index inside one transaction, so a failed save
// leaves the earlier index readable.
package sqlite
