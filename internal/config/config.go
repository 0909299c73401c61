package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig sizes the text grid and the pixel distance between lines.
type LayoutConfig struct {
	MaxWidth  int `yaml:"max_width" json:"max_width"`
	MaxHeight int `yaml:"max_height" json:"max_height"`
	LineStep  int `yaml:"line_step" json:"line_step"`
}

// PageConfig controls how long each page stays up and how it is drawn.
type PageConfig struct {
	// PollIntervalMs and PollCount define the dwell: the abort button is
	// checked PollCount times, PollIntervalMs apart.
	PollIntervalMs int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	PollCount      int `yaml:"poll_count" json:"poll_count"`

	// ClearEachPage runs a full refresh before every page. A pointer so an
	// absent key keeps the default (true).
	ClearEachPage *bool `yaml:"clear_each_page" json:"clear_each_page"`
}

// FontConfig selects the face used to draw text. An empty Path uses the
// built-in 8x8 bitmap face; "7x13" and "gomono" select the other bundled
// faces.
type FontConfig struct {
	Path string  `yaml:"path" json:"path"`
	Size float64 `yaml:"size" json:"size"`
}

// HardwareConfig names the SPI port and GPIO lines (periph names such as
// "GPIO17"). Empty values use the HAT wiring.
type HardwareConfig struct {
	SPIPort string `yaml:"spi_port" json:"spi_port"`
	SPIHz   int64  `yaml:"spi_hz" json:"spi_hz"`
	Reset   string `yaml:"reset" json:"reset"`
	DC      string `yaml:"dc" json:"dc"`
	CS      string `yaml:"cs" json:"cs"`
	Busy    string `yaml:"busy" json:"busy"`

	// Button is the abort key. Empty disables it.
	Button          string `yaml:"button" json:"button"`
	ButtonActiveLow *bool  `yaml:"button_active_low" json:"button_active_low"`
}

// Config is the top-level application configuration.
type Config struct {
	// NewsURL is the JSON news document: http(s)://, file:// or a bare path.
	NewsURL string `yaml:"news_url" json:"news_url"`

	// CacheDir holds the fetched document and its validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Listen is the HTTP listen address for the status API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Orientation is "landscape" (default) or "portrait".
	Orientation string `yaml:"orientation" json:"orientation"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// gating re-fetches between passes. If empty, the document is
	// re-fetched as soon as a pass completes.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BusyTimeoutMs bounds each wait on the panel's BUSY line.
	BusyTimeoutMs int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`

	// MaxFetchRetries is a pointer so an absent key keeps the default and an
	// explicit 0 disables retries.
	MaxFetchRetries   *int `yaml:"max_fetch_retries" json:"max_fetch_retries"`
	FetchRetryDelayMs int  `yaml:"fetch_retry_delay_ms" json:"fetch_retry_delay_ms"`

	Layout   LayoutConfig   `yaml:"layout" json:"layout"`
	Page     PageConfig     `yaml:"page" json:"page"`
	Font     FontConfig     `yaml:"font" json:"font"`
	Hardware HardwareConfig `yaml:"hardware" json:"hardware"`

	// DumpDir, if set, receives a PNG and the raw plane of every page.
	DumpDir string `yaml:"dump_dir,omitempty" json:"dump_dir,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultNewsURL         = "file:///var/lib/epdnews/news.json"
	defaultCacheDir        = "/var/lib/epdnews/news-cache"
	defaultListen          = "127.0.0.1:8080"
	defaultLogLevel        = "info"
	defaultOrientation     = "landscape"
	defaultBusyTimeoutMs   = 30000
	defaultMaxRetries      = 2
	defaultRetryDelayMs    = 2000
	defaultMaxWidth        = 32
	defaultPortraitWidth   = 16
	defaultMaxHeight       = 12
	defaultLineStep        = 10
	defaultPollIntervalMs  = 1000
	defaultPollCount       = 10
	defaultFontSize        = 10
	defaultButtonActiveLow = true
)

// Visible panel size and the glyph width of the default face, used to check
// that the default grid fits the frame.
const (
	panelWidth  = 122
	panelHeight = 250
	glyphWidth  = 8
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		NewsURL:     defaultNewsURL,
		CacheDir:    defaultCacheDir,
		Listen:      defaultListen,
		LogLevel:    defaultLogLevel,
		Orientation: defaultOrientation,
		BasicAuth:   nil,
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
// Listen is left alone: empty means the status API is off.
func (c *Config) Normalize() {
	if c.NewsURL == "" {
		c.NewsURL = defaultNewsURL
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	c.Orientation = strings.ToLower(strings.TrimSpace(c.Orientation))
	switch c.Orientation {
	case "landscape", "portrait":
	default:
		// Unknown value; the driver default is landscape.
		c.Orientation = defaultOrientation
	}
	if c.BusyTimeoutMs <= 0 {
		c.BusyTimeoutMs = defaultBusyTimeoutMs
	}
	if c.MaxFetchRetries == nil {
		v := defaultMaxRetries
		c.MaxFetchRetries = &v
	} else if *c.MaxFetchRetries < 0 {
		*c.MaxFetchRetries = 0
	}
	if c.FetchRetryDelayMs <= 0 {
		c.FetchRetryDelayMs = defaultRetryDelayMs
	}

	if c.Layout.MaxWidth <= 0 {
		// The portrait frame is 122 px wide: 15 cells of the 8 px face.
		c.Layout.MaxWidth = defaultMaxWidth
		if c.Orientation == "portrait" {
			c.Layout.MaxWidth = defaultPortraitWidth
		}
	}
	if c.Layout.MaxHeight <= 0 {
		c.Layout.MaxHeight = defaultMaxHeight
	}
	if c.Layout.LineStep <= 0 {
		c.Layout.LineStep = defaultLineStep
	}

	if c.Page.PollIntervalMs <= 0 {
		c.Page.PollIntervalMs = defaultPollIntervalMs
	}
	if c.Page.PollCount <= 0 {
		c.Page.PollCount = defaultPollCount
	}
	if c.Page.ClearEachPage == nil {
		v := true
		c.Page.ClearEachPage = &v
	}

	if c.Font.Size <= 0 {
		c.Font.Size = defaultFontSize
	}
	if c.Hardware.ButtonActiveLow == nil {
		v := defaultButtonActiveLow
		c.Hardware.ButtonActiveLow = &v
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Layout.MaxWidth < 3 {
		return fmt.Errorf("config: layout.max_width %d is too small", c.Layout.MaxWidth)
	}
	if c.Font.Path == "" {
		// A centered line spans at most max_width-1 cells.
		visible := panelHeight
		if c.Orientation == "portrait" {
			visible = panelWidth
		}
		if w := (c.Layout.MaxWidth - 1) * glyphWidth; w > visible {
			return fmt.Errorf("config: layout.max_width %d needs %d px, the %s frame is %d px wide",
				c.Layout.MaxWidth, w, c.Orientation, visible)
		}
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// BusyTimeout returns BusyTimeoutMs as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMs) * time.Millisecond
}

// FetchRetries returns MaxFetchRetries, 0 when unset.
func (c *Config) FetchRetries() int {
	if c.MaxFetchRetries == nil {
		return 0
	}
	return *c.MaxFetchRetries
}

// FetchRetryDelay returns FetchRetryDelayMs as a duration.
func (c *Config) FetchRetryDelay() time.Duration {
	return time.Duration(c.FetchRetryDelayMs) * time.Millisecond
}

// PollInterval returns Page.PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Page.PollIntervalMs) * time.Millisecond
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions, creating the parent
// directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".epdnews-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
