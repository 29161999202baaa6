// Package model defines the core data structures used throughout shotdiff.
//
// This package contains the following main types:
//   - CaptureKey: the filesystem-safe image name derived from a URL
//   - PageCapture: per-URL state carried through the capture phases
//   - Item / Totals / RunReport: the structured result of one run
//   - Execution: the outcome of the capture worker process
//
// The models are serializable to JSON for the report artifact and the
// history database.
package model
