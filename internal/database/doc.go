// Package database provides SQLite-based storage for export history.
//
// This package implements the HistoryDB, which stores:
//   - One row per export run with counters and status
//   - Skipped items per run for fast history listings
//   - Complete run reports as JSON for detailed inspection
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
