package model

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// ImageExtension is the extension of every captured image.
	ImageExtension = ".png"

	// MaxKeyLength bounds the sanitized part of a capture key.
	MaxKeyLength = 150

	// DiffPrefix is prepended to a capture key to name its difference image.
	DiffPrefix = "diff_"

	// fallbackKey is used when sanitizing leaves nothing.
	fallbackKey = "screenshot"

	// uniqueSuffixLength is the number of hex characters of the URL digest
	// appended by UniqueCaptureKey.
	uniqueSuffixLength = 8
)

var (
	keySchemePattern = regexp.MustCompile(`^https?://`)
	keyUnsafePattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	keyRepeatPattern = regexp.MustCompile(`_+`)
)

// CaptureKey derives the filesystem-safe image name for a URL.
//
// The scheme is stripped, every run of characters outside [A-Za-z0-9._-]
// becomes a single '_', repeated '_' collapse, leading and trailing '_' are
// trimmed and the result is cut to MaxKeyLength before ImageExtension is
// appended. The mapping is lossy: distinct URLs can share a key, in which
// case the later capture overwrites the earlier one on disk.
func CaptureKey(url string) string {
	return sanitizeKey(url, MaxKeyLength) + ImageExtension
}

// UniqueCaptureKey is CaptureKey with a short SHA3-256 digest of the full URL
// appended, so URLs that sanitize to the same text still get distinct files.
func UniqueCaptureKey(url string) string {
	sum := sha3.Sum256([]byte(url))
	suffix := hex.EncodeToString(sum[:])[:uniqueSuffixLength]
	return sanitizeKey(url, MaxKeyLength-uniqueSuffixLength-1) + "-" + suffix + ImageExtension
}

// DiffKey returns the difference image name for a capture key.
func DiffKey(captureKey string) string {
	return DiffPrefix + captureKey
}

// KeyFunc maps a URL to its capture key.
type KeyFunc func(url string) string

// KeyFuncFor returns UniqueCaptureKey when unique is set, CaptureKey otherwise.
func KeyFuncFor(unique bool) KeyFunc {
	if unique {
		return UniqueCaptureKey
	}
	return CaptureKey
}

func sanitizeKey(url string, maxLen int) string {
	safe := keySchemePattern.ReplaceAllString(url, "")
	safe = keyUnsafePattern.ReplaceAllString(safe, "_")
	safe = keyRepeatPattern.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if len(safe) > maxLen {
		safe = safe[:maxLen]
	}
	if safe == "" {
		safe = fallbackKey
	}
	return safe
}
