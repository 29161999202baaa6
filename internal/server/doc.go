// Package server exposes the runner over HTTP.
//
// Every endpoint is a GET whose query parameters override the configured
// defaults.
//
//	GET /health   liveness probe
//	GET /trainer  refresh the baseline captures
//	GET /run      capture, compare and return the run report
//
// Requests that cannot start (missing URL list, invalid parameters, a run
// already using the same directories) are answered with a JSON body of the
// form {"ok": false, "error": "..."}.
package server
