// Package cli implements the gsearch and gsearch-history commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/FranksOps/gsearch/internal/fingerprint"
	"github.com/FranksOps/gsearch/internal/metrics"
	"github.com/FranksOps/gsearch/internal/pipeline"
	"github.com/FranksOps/gsearch/internal/scraper"
	"github.com/FranksOps/gsearch/internal/serp"
	"github.com/FranksOps/gsearch/pkg/useragent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes. A failed search exits with ExitOK unless strict_exit is set.
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitSearch = 2
)

type searchApp struct {
	stdout     io.Writer
	stderr     io.Writer
	v          *viper.Viper
	configPath string
	code       int
}

// Execute runs gsearch with args (without the program name) and returns the
// process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// cobra falls back to os.Args on a nil slice
	if args == nil {
		args = []string{}
	}
	app := &searchApp{stdout: stdout, stderr: stderr, v: newViper()}
	cmd := app.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	return exitCode(err, app.code, stdout, stderr)
}

func exitCode(err error, code int, stdout, stderr io.Writer) int {
	if err == nil {
		return code
	}

	var ue *UsageError
	if errors.As(err, &ue) {
		if ue.Reason != "" {
			fmt.Fprintf(stderr, "Error: %s\n", ue.Reason)
		}
		fmt.Fprintln(stdout, usageLine)
		return ExitUsage
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitUsage
}

func (a *searchApp) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gsearch [flags] <search_term>... <number_of_results> [images]",
		Short: "Scrape Google result pages into JSON",
		Long: `gsearch fetches one Google result page and prints the extracted results
as a JSON array. A trailing "images" (with exactly one search term) switches
to image search.

Flags must come before the search terms. Use -- to search for a term that
starts with a dash:

  gsearch -- -v 3`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.run,
	}

	// everything after the first positional argument is part of the query
	cmd.Flags().SetInterspersed(false)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	f := cmd.Flags()
	f.StringVar(&a.configPath, "config", "", "config file (default $GSEARCH_CONFIG)")
	f.String("log-level", "warn", "log level: debug, info, warn, error")
	f.String("log-format", "text", "log format: text or json")
	f.String("fingerprint", string(fingerprint.ProfileGo), "TLS fingerprint: go, chrome, firefox, safari, random")
	f.String("proxy", "", "outbound proxy URL")
	f.Duration("timeout", 0, "request timeout (default 30s)")
	f.Bool("strict-exit", false, "exit 2 when the search fails")
	f.String("history-backend", "none", "search history backend: none, json, csv, sqlite, postgres")
	f.String("history-dsn", "", "search history file path or database DSN")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file")

	bindFlags(a.v, cmd, map[string]string{
		"log.level":        "log-level",
		"log.format":       "log-format",
		"fingerprint":      "fingerprint",
		"proxy":            "proxy",
		"timeout":          "timeout",
		"strict_exit":      "strict-exit",
		"history.backend":  "history-backend",
		"history.dsn":      "history-dsn",
		"metrics.textfile": "metrics-textfile",
	})

	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		// Lookup only fails for a misspelled flag name.
		_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
}

func (a *searchApp) run(cmd *cobra.Command, args []string) error {
	q, err := ParseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(a.v, a.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(a.stderr, cfg.Log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{Provider: provider, Logger: logger}

	backend, err := openBackend(ctx, cfg.History)
	if err != nil {
		logger.Warn("search history disabled", "err", err)
	} else if backend != nil {
		defer backend.Close()
		p.Backend = backend
	}

	if cfg.Metrics.Textfile != "" {
		p.Metrics = metrics.NewRecorder()
	}

	logger.Debug("searching", "query", q.Text, "limit", q.Limit, "mode", q.Mode)
	resp, searchErr := p.Run(ctx, q)

	if p.Metrics != nil {
		if err := p.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.Metrics.Textfile, "err", err)
		}
	}

	if searchErr != nil {
		fmt.Fprintf(a.stdout, "%s: %v\n", diagnosticPrefix(q.Mode), searchErr)
		if cfg.StrictExit {
			a.code = ExitSearch
		}
		return nil
	}

	return writeResults(a.stdout, resp.Results())
}

func diagnosticPrefix(m serp.Mode) string {
	if m == serp.ModeImages {
		return "Error during image search"
	}
	return "Error during search"
}

// writeResults prints results as a JSON array indented by four spaces,
// leaving HTML characters in titles and URLs unescaped.
func writeResults(w io.Writer, results any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

func newProvider(cfg Config, logger *slog.Logger) (serp.Provider, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	proxy, err := cfg.proxyURL()
	if err != nil {
		return nil, err
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Proxy:        proxy,
		UAPool:       useragent.NewPool(cfg.UserAgents),
		Fingerprint:  profile,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	return serp.NewGoogle(fetcher, serp.GoogleConfig{
		SearchURL:           cfg.SearchURL,
		Strategy:            serp.SelectorStrategy{Selectors: cfg.selectors()},
		LegacyQueryEncoding: cfg.LegacyQueryEncoding,
		Logger:              logger,
	}), nil
}
