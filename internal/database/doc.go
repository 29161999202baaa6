// Package database provides SQLite-based run history for shotdiff.
//
// HistoryDB keeps one row per run with its totals and the full report
// document, and one row per checked URL so that the similarity of a page
// can be followed across runs. The JSON artifacts in the reports directory
// remain the primary record; the database only makes them queryable.
//
// modernc.org/sqlite is a CGO-free driver, so the binary cross-compiles
// without a C toolchain.
package database
