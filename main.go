package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pagemd/internal/config"
	"pagemd/internal/driver"
	_ "pagemd/internal/fetcher"
	"pagemd/internal/httpfetch"
	"pagemd/internal/log"
	"pagemd/internal/robots"
	"pagemd/internal/scraper"
)

var version = "dev"

var errAllFailed = errors.New("every target failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "pagemd [base-url] [paths...]",
		Short:   "Render pages in a headless browser and save them as Markdown",
		Version: version,
		Long: `pagemd loads each target page in a headless browser, waits for it to
settle, converts the rendered HTML to Markdown and writes one file per page
under the output directory. Requests are spaced by a politeness delay and
robots.txt is honored by default.`,
		Example: `  # Convert two pages of a site
  pagemd https://example.com /docs/intro /docs/install

  # Read targets from a file, one path per line
  pagemd https://example.com --targets-file pages.txt -o out

  # Crawl a docs section, keeping only the main content
  pagemd https://example.com/docs/ --follow --max-pages 50 -l content

  # Static site, no browser needed
  pagemd https://example.com /about --engine http --delay 1`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.New(cfgFile)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			return run(cmd, v, args)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./pagemd.yaml or ~/.config/pagemd/pagemd.yaml)")
	flags.StringP("output", "o", config.DefaultOutputDir, "Output directory")
	flags.Float64P("delay", "d", config.DefaultDelay.Seconds(), "Seconds between requests")
	flags.Float64P("timeout", "t", config.DefaultTimeout.Seconds(), "Seconds to wait for a page to load")
	flags.String("user-agent", config.DefaultUserAgent, "User-Agent sent with every request")
	flags.String("targets-file", "", "File with one target path per line")
	flags.String("engine", config.DefaultEngine, "Fetch engine ("+strings.Join(scraper.Engines(), ", ")+")")
	flags.StringP("level", "l", scraper.LevelBody, "Content extraction level ("+strings.Join(scraper.Levels, ", ")+")")
	flags.StringP("selector", "s", "", "Selector for xpath or css level")
	flags.Bool("showui", false, "Show browser UI (disable headless mode)")
	flags.StringP("proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890)")
	flags.String("browser-bin", "", "Browser executable (default: locate or download Chromium)")
	flags.Bool("no-robots", false, "Ignore robots.txt")
	flags.Int("retries", 0, "Extra attempts for timeouts and server errors")
	flags.Float64("retry-backoff", config.DefaultRetryBackoff.Seconds(), "Seconds before the first retry, doubled each time")
	flags.Bool("follow", false, "Also convert same-site links found under the base path")
	flags.Int("max-pages", config.DefaultMaxPages, "Stop queueing links after this many pages (0 for no limit)")
	flags.StringP("format", "f", "markdown", "Output format (markdown, json)")
	flags.Bool("front-matter", false, "Prefix Markdown with YAML front matter")
	flags.String("report", "", "Write a JSON run report to this file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	return rootCmd
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"output":        config.KeyOutput,
	"delay":         config.KeyDelay,
	"timeout":       config.KeyTimeout,
	"user-agent":    config.KeyUserAgent,
	"targets-file":  config.KeyTargetsFile,
	"engine":        config.KeyEngine,
	"level":         config.KeyLevel,
	"selector":      config.KeySelector,
	"showui":        config.KeyShowUI,
	"proxy":         config.KeyProxy,
	"browser-bin":   config.KeyBrowserBin,
	"retries":       config.KeyRetries,
	"retry-backoff": config.KeyRetryBackoff,
	"follow":        config.KeyFollow,
	"max-pages":     config.KeyMaxPages,
	"format":        config.KeyFormat,
	"front-matter":  config.KeyFrontMatter,
	"report":        config.KeyReport,
	"log-level":     config.KeyLogLevel,
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	// --no-robots inverts the stored key, so it only applies when given.
	if flags.Changed("no-robots") {
		noRobots, _ := flags.GetBool("no-robots")
		v.Set(config.KeyRespectRobots, !noRobots)
	}
	return nil
}

func run(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := config.Load(v, args)
	if err != nil {
		return err
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := log.NewLogger("pagemd")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := robots.AllowAll()
	if cfg.RespectRobots {
		client, err := httpfetch.NewClient(cfg.ProxyURL, cfg.Timeout)
		if err != nil {
			return err
		}
		policy = robots.Load(ctx, client, cfg.BaseURL, cfg.UserAgent)
	}
	delay := driver.EffectiveDelay(cfg.Delay, policy)
	if delay != cfg.Delay {
		logger.Info().Dur("delay", delay).Msg("using robots.txt crawl-delay")
	}

	open, ok := scraper.Get(cfg.Engine)
	if !ok {
		return &scraper.FatalError{
			Op:  "select engine",
			Err: fmt.Errorf("unknown engine %q (available: %s)", cfg.Engine, strings.Join(scraper.Engines(), ", ")),
		}
	}
	f, err := open(ctx, cfg.EngineOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close fetch engine")
		}
	}()

	logger.Info().
		Str("base", cfg.BaseURL.String()).
		Int("targets", len(cfg.Targets)).
		Str("engine", cfg.Engine).
		Str("output", cfg.OutputDir).
		Msg("starting run")

	d := driver.New(scraper.WithRetry(f, cfg.Retries+1, cfg.RetryBackoff), cfg.BaseURL, driver.Options{
		OutputDir:   cfg.OutputDir,
		Timeout:     cfg.Timeout,
		Delay:       delay,
		Format:      cfg.Format,
		FrontMatter: cfg.FrontMatter,
		Follow:      cfg.Follow,
		MaxPages:    cfg.MaxPages,
	}, log.NewLogger("driver"), driver.WithPolicy(policy))

	report, runErr := d.Run(ctx, cfg.Targets)

	if cfg.ReportPath != "" {
		if err := report.WriteJSON(cfg.ReportPath); err != nil {
			logger.Error().Err(err).Msg("failed to write report")
		}
	}
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Bool("aborted", report.Aborted).
		Msg("run finished")

	switch {
	case runErr != nil:
		return runErr
	case report.Succeeded == 0 && report.Failed > 0:
		return errAllFailed
	}
	return nil
}
