// Package main provides the entry point for the shotdiff CLI.
//
// shotdiff captures full-page screenshots of a list of web pages and
// compares them with a stored baseline set to detect visual regressions.
//
// Usage:
//
//	shotdiff trainer            record the baseline captures
//	shotdiff run                capture and compare against the baseline
//	shotdiff serve              expose run and trainer over HTTP
//	shotdiff history list       show earlier runs
//
// See --help for all available options.
package main

// main is the entry point for shotdiff.
func main() {
	Execute()
}
