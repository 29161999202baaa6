// Package worker runs the capture engine in an isolated child process.
//
// The browser is the least predictable part of a run: it can hang, crash or
// leak memory. Running it in a separate process of the same binary keeps
// those failures away from the comparison and reporting code, and the
// child's exit status plus the tails of its output become the run's
// execution record.
package worker
