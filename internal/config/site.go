package config

import (
	"net/url"
	"strings"
)

// SiteConfig holds overrides for a single site.
// Unset fields fall back to the defaults section, then to the CLI values.
type SiteConfig struct {
	// Threshold overrides the SSIM pass mark.
	Threshold *float64 `yaml:"threshold,omitempty"`

	// Timeout overrides the page timeout, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// Wait overrides the settle wait, in seconds.
	Wait *float64 `yaml:"wait,omitempty"`
}

func (sc SiteConfig) validate() error {
	if sc.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if sc.Wait != nil && *sc.Wait < 0 {
		return ErrInvalidWait
	}
	if sc.Threshold != nil {
		return ValidateThreshold(*sc.Threshold)
	}
	return nil
}

// File represents the structure of the .shotdiff configuration file.
type File struct {
	// DataDir replaces the default data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	// Listen is the HTTP listen address of `shotdiff serve`.
	Listen string `yaml:"listen,omitempty"`

	// UniqueKeys enables digest-suffixed capture file names.
	UniqueKeys bool `yaml:"unique_keys,omitempty"`

	// Defaults applies to every site without its own entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a URL or a host name to its overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// Lookup returns the entry for rawURL. An exact URL entry wins over an
// entry for the URL's host.
func (cf *File) Lookup(rawURL string) (SiteConfig, bool) {
	if sc, ok := cf.Sites[rawURL]; ok {
		return sc, true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return SiteConfig{}, false
	}
	sc, ok := cf.Sites[strings.ToLower(u.Hostname())]
	return sc, ok
}
