// Package config resolves a RunConfig from flags, PAGEMD_* environment
// variables, an optional .env file and an optional pagemd.yaml.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pagemd/internal/formatter"
	"pagemd/internal/scraper"
)

const (
	DefaultOutputDir     = "markdown_out"
	DefaultDelay         = 2500 * time.Millisecond
	DefaultTimeout       = 15 * time.Second
	DefaultUserAgent     = "pagemd/1.0 (+https://github.com/pagemd/pagemd)"
	DefaultEngine        = "browser"
	DefaultRetryBackoff  = 2 * time.Second
	DefaultMaxRetryAfter = 2 * time.Minute
	DefaultMaxPages      = 100
)

// Configuration keys.
const (
	KeyBaseURL       = "base_url"
	KeyOutput        = "output"
	KeyDelay         = "delay"
	KeyTimeout       = "timeout"
	KeyUserAgent     = "user_agent"
	KeyTargets       = "targets"
	KeyTargetsFile   = "targets_file"
	KeyEngine        = "engine"
	KeyLevel         = "level"
	KeySelector      = "selector"
	KeyShowUI        = "showui"
	KeyProxy         = "proxy"
	KeyBrowserBin    = "browser_bin"
	KeyRespectRobots = "respect_robots"
	KeyRetries       = "retries"
	KeyRetryBackoff  = "retry_backoff"
	KeyMaxRetryAfter = "max_retry_after"
	KeyFollow        = "follow"
	KeyMaxPages      = "max_pages"
	KeyFormat        = "format"
	KeyFrontMatter   = "front_matter"
	KeyReport        = "report"
	KeyLogLevel      = "log_level"
)

// RunConfig is everything a run needs. It is read-only once loaded.
type RunConfig struct {
	BaseURL   *url.URL
	OutputDir string
	Delay     time.Duration
	Timeout   time.Duration
	UserAgent string
	Targets   []scraper.Target

	Engine     string
	Level      string
	Selector   string
	Headless   bool
	ProxyURL   string
	BrowserBin string // rod locates or downloads a browser when empty

	RespectRobots bool
	Retries       int // extra attempts after the first
	RetryBackoff  time.Duration
	MaxRetryAfter time.Duration

	Follow   bool
	MaxPages int // 0 means unlimited

	Format      string
	FrontMatter bool
	ReportPath  string
	LogLevel    string
}

// EngineOptions returns the options used to open the fetch engine.
func (c *RunConfig) EngineOptions() scraper.Options {
	return scraper.Options{
		UserAgent:     c.UserAgent,
		Headless:      c.Headless,
		ProxyURL:      c.ProxyURL,
		BrowserBin:    c.BrowserBin,
		Level:         c.Level,
		Selector:      c.Selector,
		MaxRetryAfter: c.MaxRetryAfter,
	}
}

// New returns a viper instance with defaults, environment binding and the
// config file loaded. cfgFile may be empty to search ./pagemd.yaml and
// ~/.config/pagemd/pagemd.yaml.
func New(cfgFile string) (*viper.Viper, error) {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("PAGEMD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("pagemd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pagemd"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOutput, DefaultOutputDir)
	v.SetDefault(KeyDelay, DefaultDelay)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyEngine, DefaultEngine)
	v.SetDefault(KeyLevel, scraper.LevelBody)
	v.SetDefault(KeyRespectRobots, true)
	v.SetDefault(KeyRetryBackoff, DefaultRetryBackoff)
	v.SetDefault(KeyMaxRetryAfter, DefaultMaxRetryAfter)
	v.SetDefault(KeyMaxPages, DefaultMaxPages)
	v.SetDefault(KeyFormat, formatter.Markdown)
	v.SetDefault(KeyLogLevel, "info")
}

// Load builds and validates a RunConfig. args are the positional CLI
// arguments: an optional base URL followed by target paths.
func Load(v *viper.Viper, args []string) (*RunConfig, error) {
	cfg, err := load(v, args)
	if err != nil {
		return nil, &scraper.FatalError{Op: "invalid configuration", Err: err}
	}
	return cfg, nil
}

func load(v *viper.Viper, args []string) (*RunConfig, error) {
	rawBase := v.GetString(KeyBaseURL)
	if len(args) > 0 {
		rawBase, args = args[0], args[1:]
	}
	base, err := parseBaseURL(rawBase)
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{
		BaseURL:       base,
		OutputDir:     v.GetString(KeyOutput),
		UserAgent:     v.GetString(KeyUserAgent),
		Engine:        strings.ToLower(v.GetString(KeyEngine)),
		Level:         v.GetString(KeyLevel),
		Selector:      v.GetString(KeySelector),
		Headless:      !v.GetBool(KeyShowUI),
		ProxyURL:      v.GetString(KeyProxy),
		BrowserBin:    v.GetString(KeyBrowserBin),
		RespectRobots: v.GetBool(KeyRespectRobots),
		Retries:       v.GetInt(KeyRetries),
		Follow:        v.GetBool(KeyFollow),
		MaxPages:      v.GetInt(KeyMaxPages),
		Format:        v.GetString(KeyFormat),
		FrontMatter:   v.GetBool(KeyFrontMatter),
		ReportPath:    v.GetString(KeyReport),
		LogLevel:      v.GetString(KeyLogLevel),
	}

	for key, dst := range map[string]*time.Duration{
		KeyDelay:         &cfg.Delay,
		KeyTimeout:       &cfg.Timeout,
		KeyRetryBackoff:  &cfg.RetryBackoff,
		KeyMaxRetryAfter: &cfg.MaxRetryAfter,
	} {
		if *dst, err = seconds(v.Get(key)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	paths := v.GetStringSlice(KeyTargets)
	paths = append(paths, args...)
	if file := v.GetString(KeyTargetsFile); file != "" {
		filePaths, err := ReadTargetsFile(file)
		if err != nil {
			return nil, err
		}
		paths = append(paths, filePaths...)
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	if cfg.Targets, err = Targets(base, paths); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RunConfig) validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("output directory is required")
	case c.Delay < 0:
		return fmt.Errorf("delay must not be negative")
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative")
	case c.RetryBackoff < 0 || c.MaxRetryAfter < 0:
		return fmt.Errorf("retry durations must not be negative")
	case c.MaxPages < 0:
		return fmt.Errorf("max pages must not be negative")
	case c.Engine == "":
		return fmt.Errorf("engine is required")
	}

	if !slices.Contains(scraper.Levels, c.Level) {
		return fmt.Errorf("invalid content level: %s", c.Level)
	}
	if (c.Level == scraper.LevelCSS || c.Level == scraper.LevelXPath) && c.Selector == "" {
		return fmt.Errorf("--selector is required when using '%s' level", c.Level)
	}
	if c.Level != scraper.LevelCSS && c.Level != scraper.LevelXPath && c.Selector != "" {
		return fmt.Errorf("--selector is only valid with 'xpath' or 'css' level")
	}
	if !slices.Contains(formatter.Formats, c.Format) {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", raw)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// Targets resolves paths against base, keeping the first of any paths that
// name the same resource.
func Targets(base *url.URL, paths []string) ([]scraper.Target, error) {
	targets := make([]scraper.Target, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		t, err := scraper.NewTarget(base, p)
		if err != nil {
			return nil, err
		}
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		targets = append(targets, t)
	}
	return targets, nil
}

// ReadTargetsFile reads one target path per line. Blank lines and lines
// starting with # are ignored.
func ReadTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return paths, nil
}

// seconds interprets bare numbers as seconds and strings as either numbers
// of seconds or Go durations ("1m30s").
func seconds(val any) (time.Duration, error) {
	switch d := val.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(d)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("unsupported value %v", val)
	}
}
