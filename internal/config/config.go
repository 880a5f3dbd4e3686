package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"partywatch/internal/model"
)

// The YAML file holds the site to scan, the interest groups with their
// webhooks, the state store and the dispatch pacing. A missing file is
// written out with defaults on first run; the file may hold webhook tokens,
// so it is kept at 0600.

// GroupConfig describes one interest group.
type GroupConfig struct {
	// Name is the unique group key, also used in dedup keys and settings.
	Name string `yaml:"name" json:"name"`
	// Keywords are matched case- and punctuation-insensitively.
	Keywords []string `yaml:"keywords" json:"keywords"`
	// Webhook is the sink endpoint for this group.
	Webhook string `yaml:"webhook" json:"-"`
	// Color is the embed accent color as hex ("#1e90ff").
	Color string `yaml:"color" json:"color"`
	// Thumbnail is used when a party has no dish image.
	Thumbnail string `yaml:"thumbnail" json:"thumbnail"`
	// Enabled is the default state; the settings document may override it.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// SiteConfig describes the listing page.
type SiteConfig struct {
	// URL is the listing page to scan.
	URL string `yaml:"url" json:"url"`
	// BaseURL resolves relative links and images. Defaults to URL's origin.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Selector matches one node per entry (the entry title).
	Selector string `yaml:"selector" json:"selector"`
	// WaitTimeoutSeconds bounds how long a pass waits for entries to render.
	WaitTimeoutSeconds int `yaml:"wait_timeout_seconds" json:"wait_timeout_seconds"`
	// Source is "chrome" (headless rendering) or "http" (plain fetch).
	Source string `yaml:"source" json:"source"`
	// ChromeRemoteURL attaches to a running browser's DevTools endpoint
	// instead of launching one.
	ChromeRemoteURL string `yaml:"chrome_remote_url" json:"chrome_remote_url"`
	// CacheDir holds the http source's ETag cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// StoreConfig selects the key-value backend for settings and notified IDs.
type StoreConfig struct {
	// Driver is "file" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

// DispatchConfig controls outbound webhook messages.
type DispatchConfig struct {
	// IntervalMs is the minimum delay between two sends.
	IntervalMs     int    `yaml:"interval_ms" json:"interval_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	Username       string `yaml:"username" json:"username"`
	AvatarURL      string `yaml:"avatar_url" json:"avatar_url"`
	FooterText     string `yaml:"footer_text" json:"footer_text"`
	FooterIconURL  string `yaml:"footer_icon_url" json:"footer_icon_url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the admin API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/1 * * * *").
	// If empty, passes run every refreshSeconds from the settings document.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LocalNotify is "log" or "desktop".
	LocalNotify string `yaml:"local_notify" json:"local_notify"`

	Site     SiteConfig     `yaml:"site" json:"site"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`

	Groups []GroupConfig `yaml:"groups" json:"groups"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultSelector    = ".line-clamp-3"
	defaultWaitTimeout = 10
	defaultIntervalMs  = 1000
	defaultSendTimeout = 15
	defaultStorePath   = "/var/lib/partywatch/state.json"
	defaultCacheDir    = "/var/lib/partywatch/page-cache"
)

func boolPtr(b bool) *bool { return &b }

// DefaultGroups splits the classic keyword list into interest groups.
func DefaultGroups() []GroupConfig {
	return []GroupConfig{
		{Name: "Cakes", Keywords: []string{"cake", "cakes"}, Color: "#f472b6", Enabled: boolPtr(true)},
		{Name: "Plushies", Keywords: []string{"plushie", "plushies"}, Color: "#a78bfa", Enabled: boolPtr(true)},
		{Name: "Fishing", Keywords: []string{"fishing", "rare catch"}, Color: "#38bdf8", Enabled: boolPtr(true)},
		{Name: "Fish Dishes", Keywords: []string{"fish", "sushi"}, Color: "#22d3ee", Enabled: boolPtr(true)},
		{Name: "Legendary", Keywords: []string{"epic", "legendary"}, Color: "#f59e0b", Enabled: boolPtr(true)},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		LogLevel:    "info",
		LocalNotify: "log",
		Site: SiteConfig{
			Selector:           defaultSelector,
			WaitTimeoutSeconds: defaultWaitTimeout,
			Source:             "chrome",
			CacheDir:           defaultCacheDir,
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   defaultStorePath,
		},
		Dispatch: DispatchConfig{
			IntervalMs:     defaultIntervalMs,
			TimeoutSeconds: defaultSendTimeout,
			Username:       "Party Watch",
		},
		Groups:    DefaultGroups(),
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LocalNotify {
	case "log", "desktop":
	default:
		c.LocalNotify = "log"
	}

	if c.Site.Selector == "" {
		c.Site.Selector = defaultSelector
	}
	if c.Site.WaitTimeoutSeconds <= 0 {
		c.Site.WaitTimeoutSeconds = defaultWaitTimeout
	}
	switch c.Site.Source {
	case "chrome", "http":
	default:
		c.Site.Source = "chrome"
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = originOf(c.Site.URL)
	}
	if c.Site.CacheDir == "" {
		c.Site.CacheDir = defaultCacheDir
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}

	if c.Dispatch.IntervalMs <= 0 {
		c.Dispatch.IntervalMs = defaultIntervalMs
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		c.Dispatch.TimeoutSeconds = defaultSendTimeout
	}
	if c.Dispatch.Username == "" {
		c.Dispatch.Username = "Party Watch"
	}

	if c.Groups == nil {
		c.Groups = DefaultGroups()
	}
	for i := range c.Groups {
		c.Groups[i].Name = strings.TrimSpace(c.Groups[i].Name)
		if c.Groups[i].Enabled == nil {
			c.Groups[i].Enabled = boolPtr(true)
		}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Site.URL == "" {
		errs = append(errs, errors.New("site.url is required"))
	}
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of file, sqlite", c.Store.Driver))
	}

	seen := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("groups[%d]: name is required", i))
			continue
		}
		if strings.Contains(g.Name, "::") {
			errs = append(errs, fmt.Errorf("groups[%d]: name %q may not contain \"::\"", i, g.Name))
		}
		if seen[g.Name] {
			errs = append(errs, fmt.Errorf("groups[%d]: duplicate name %q", i, g.Name))
		}
		seen[g.Name] = true
		if _, err := ParseColor(g.Color); err != nil {
			errs = append(errs, fmt.Errorf("groups[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// InterestGroups converts the group configs to model values, in file order.
func (c *Config) InterestGroups() []model.InterestGroup {
	out := make([]model.InterestGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		color, _ := ParseColor(g.Color)
		enabled := g.Enabled == nil || *g.Enabled
		out = append(out, model.InterestGroup{
			Name:      g.Name,
			Keywords:  append([]string(nil), g.Keywords...),
			Webhook:   g.Webhook,
			Color:     color,
			Thumbnail: g.Thumbnail,
			Enabled:   enabled,
		})
	}
	return out
}

// ParseColor parses "#rrggbb", "rrggbb" or "0xrrggbb". Empty is 0.
func ParseColor(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	return int(v), nil
}

func originOf(raw string) string {
	if raw == "" {
		return ""
	}
	i := strings.Index(raw, "://")
	if i < 0 {
		return ""
	}
	j := i + 3
	for j < len(raw) && raw[j] != '/' {
		j++
	}
	return raw[:j]
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
			// First run: create default config file.
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
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".partywatch-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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
