package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// URL list errors.
var (
	// ErrURLListNotFound is returned when the URL list file does not exist.
	ErrURLListNotFound = errors.New("URL list file not found")

	// ErrEmptyURL is returned when a URL entry is blank.
	ErrEmptyURL = errors.New("URL cannot be empty")
)

// DefaultScheme is prepended to entries that carry no scheme.
const DefaultScheme = "https://"

// schemePattern matches the schemes accepted as-is in a URL list.
var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL returns the absolute form of a URL list entry: the trimmed
// entry, prefixed with DefaultScheme when it carries no http(s) scheme.
// The entry is otherwise kept as written, so its capture key and report
// URL match the list. Only a blank entry is rejected.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if !schemePattern.MatchString(raw) {
		raw = DefaultScheme + raw
	}
	return raw, nil
}

// NavigationURL returns the address the browser loads for a normalized
// entry: the path and query percent-encoded and an internationalized host
// converted to its ASCII form. Entries that do not parse as a URL with a
// host are rejected; they fail when their page is captured.
func NavigationURL(entry string) (string, error) {
	u, err := url.Parse(entry)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", entry, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", entry)
	}

	host := u.Hostname()
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Leave hosts the IDNA profile rejects (underscores, odd labels)
		// for the browser to resolve.
		return u.String(), nil //nolint:nilerr // best effort conversion
	}
	if ascii != host {
		if port := u.Port(); port != "" {
			u.Host = ascii + ":" + port
		} else {
			u.Host = ascii
		}
	}
	return u.String(), nil
}

// ParseURLList reads a URL list: one entry per line, blank lines and lines
// starting with '#' are ignored. Every entry is normalized with NormalizeURL;
// an entry that is not a valid URL is still returned, so it fails on its
// own page instead of failing the list. The returned order matches the
// order of the input.
func ParseURLList(r io.Reader) ([]string, error) {
	urls := make([]string, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		normalized, err := NormalizeURL(line)
		if err != nil {
			continue
		}
		urls = append(urls, normalized)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

// LoadURLList reads and parses the URL list file at path.
// It returns ErrURLListNotFound if the file does not exist.
func LoadURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrURLListNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	return ParseURLList(f)
}
