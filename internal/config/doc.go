// Package config provides configuration structures and utilities for shotdiff.
// It defines the run parameters (directories, timing, threshold), the
// optional .shotdiff YAML file with per-site overrides, and XDG paths.
package config
