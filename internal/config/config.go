package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "shotdiff"

	// DefaultTimeout bounds navigation and the readyState wait of each page.
	DefaultTimeout = 20 * time.Second

	// DefaultWait is the extra settle time after a page has loaded.
	DefaultWait = 2 * time.Second

	// DefaultSSIMThreshold is the similarity at or above which a page passes.
	DefaultSSIMThreshold = 0.92

	// DefaultURLsFile is the URL list, relative to the data directory.
	DefaultURLsFile = "urls.txt"

	// DefaultOutDir receives the current captures.
	DefaultOutDir = "screenshots"

	// DefaultTrainerDir holds the baseline captures.
	DefaultTrainerDir = "trainer_screenshots"

	// DefaultDiffDir receives difference images of non-ok pages.
	DefaultDiffDir = "diff"

	// DefaultReportsDir receives the JSON run reports.
	DefaultReportsDir = "reports"

	// DefaultListenAddress is where `shotdiff serve` listens.
	DefaultListenAddress = "127.0.0.1:8080"
)

// Config holds all configuration options for shotdiff.
// It is populated from the config file and CLI flags and passed through
// the application rather than kept in global state.
type Config struct {
	// DataDir is the base directory for relative paths below.
	DataDir string

	// URLsFile is the URL list, one entry per line.
	URLsFile string

	// OutDir receives the current captures.
	OutDir string

	// TrainerDir holds the baseline captures.
	TrainerDir string

	// DiffDir receives difference images.
	DiffDir string

	// ReportsDir receives the JSON run reports.
	ReportsDir string

	// Timeout bounds navigation and the readyState wait of each page.
	Timeout time.Duration

	// Wait is the extra settle time after load.
	Wait time.Duration

	// Headful shows the browser window instead of running headless.
	Headful bool

	// SSIMThreshold is the pass mark for pages without a site override.
	SSIMThreshold float64

	// UniqueKeys appends a URL digest to capture file names so that URLs
	// which sanitize to the same name no longer overwrite each other.
	UniqueKeys bool

	// Listen is the HTTP listen address of `shotdiff serve`.
	Listen string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the usual locations.
	ConfigFilePath string

	// SiteConfigs holds the per-site overrides loaded from the config file.
	SiteConfigs *File

	// JSONReport prints the run report as JSON.
	JSONReport bool

	// MarkdownReport prints the run report as Markdown.
	MarkdownReport bool

	// ReportFile redirects the printed report to a file.
	ReportFile string

	// DBDir is the directory holding the run history database.
	// Empty disables history.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DataDir:       DefaultDataDir(),
		URLsFile:      DefaultURLsFile,
		OutDir:        DefaultOutDir,
		TrainerDir:    DefaultTrainerDir,
		DiffDir:       DefaultDiffDir,
		ReportsDir:    DefaultReportsDir,
		Timeout:       DefaultTimeout,
		Wait:          DefaultWait,
		SSIMThreshold: DefaultSSIMThreshold,
		Listen:        DefaultListenAddress,
		DBDir:         XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for shotdiff.
// On Linux: ~/.local/share/shotdiff
// On macOS: ~/Library/Application Support/shotdiff
// On Windows: %LOCALAPPDATA%\shotdiff
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for shotdiff.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDataDir is the default base for URL lists, captures and reports.
func DefaultDataDir() string {
	return filepath.Join(XDGDataDir(), "data")
}

// ResolvePath returns p unchanged when it is absolute and joined to the
// data directory otherwise.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// ApplyFile copies the top-level settings of a config file into c.
// Zero values in the file leave c unchanged.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf
	if cf.DataDir != "" {
		c.DataDir = cf.DataDir
	}
	if cf.Listen != "" {
		c.Listen = cf.Listen
	}
	if cf.UniqueKeys {
		c.UniqueKeys = true
	}
	if cf.Defaults.Timeout > 0 {
		c.Timeout = time.Duration(cf.Defaults.Timeout) * time.Second
	}
	if cf.Defaults.Wait != nil {
		c.Wait = secondsToDuration(*cf.Defaults.Wait)
	}
	if cf.Defaults.Threshold != nil {
		c.SSIMThreshold = *cf.Defaults.Threshold
	}
}

// Site returns the effective settings for url: the global values
// overridden by the matching entry of the config file, if any.
func (c *Config) Site(url string) Effective {
	eff := Effective{
		Timeout:   c.Timeout,
		Wait:      c.Wait,
		Threshold: c.SSIMThreshold,
	}
	if c.SiteConfigs == nil {
		return eff
	}

	sc, ok := c.SiteConfigs.Lookup(url)
	if !ok {
		return eff
	}
	if sc.Timeout > 0 {
		eff.Timeout = time.Duration(sc.Timeout) * time.Second
	}
	if sc.Wait != nil {
		eff.Wait = secondsToDuration(*sc.Wait)
	}
	if sc.Threshold != nil {
		eff.Threshold = *sc.Threshold
	}
	return eff
}

// Effective is the resolved timing and threshold of one URL.
type Effective struct {
	Timeout   time.Duration
	Wait      time.Duration
	Threshold float64
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Wait < 0 {
		return ErrInvalidWait
	}
	if err := ValidateThreshold(c.SSIMThreshold); err != nil {
		return err
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.SiteConfigs != nil {
		for name, sc := range c.SiteConfigs.Sites {
			if err := sc.validate(); err != nil {
				return fmt.Errorf("site %q: %w", name, err)
			}
		}
		if err := c.SiteConfigs.Defaults.validate(); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}
	return nil
}

// ValidateThreshold checks that t is a possible SSIM value.
func ValidateThreshold(t float64) error {
	if t < -1 || t > 1 || t != t {
		return ErrInvalidThreshold
	}
	return nil
}

// secondsToDuration converts fractional seconds to a duration.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
