package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/FranksOps/gsearch/internal/report"
	"github.com/FranksOps/gsearch/internal/serp"
	"github.com/FranksOps/gsearch/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type historyApp struct {
	stdout     io.Writer
	stderr     io.Writer
	v          *viper.Viper
	configPath string
	now        func() time.Time

	format string
	since  time.Duration
	query  string
	mode   string
	limit  int
	offset int

	// detected is only applied when the flag was given
	detected    bool
	detectedSet bool
}

// ExecuteHistory runs gsearch-history and returns the process exit code.
func ExecuteHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// cobra falls back to os.Args on a nil slice
	if args == nil {
		args = []string{}
	}
	app := &historyApp{stdout: stdout, stderr: stderr, v: newViper(), now: time.Now}
	cmd := app.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
	return ExitOK
}

func (a *historyApp) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gsearch-history [flags]",
		Short:         "Summarize recorded gsearch searches",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.run,
	}

	f := cmd.Flags()
	f.StringVar(&a.configPath, "config", "", "config file (default $GSEARCH_CONFIG)")
	f.StringVar(&a.format, "format", "text", "output format: text, json, html")
	f.DurationVar(&a.since, "since", 0, "only include searches newer than this, e.g. 24h")
	f.StringVar(&a.query, "query", "", "only include searches for this exact query")
	f.StringVar(&a.mode, "mode", "", "only include text or images searches")
	f.IntVar(&a.limit, "limit", 0, "only include the newest N searches")
	f.IntVar(&a.offset, "offset", 0, "skip the newest N matching searches")
	f.BoolVar(&a.detected, "detected", false, "only include searches where bot protection was (true) or was not (false) detected")
	f.String("log-level", "warn", "log level: debug, info, warn, error")
	f.String("history-backend", "none", "search history backend: json, csv, sqlite, postgres")
	f.String("history-dsn", "", "search history file path or database DSN")

	bindFlags(a.v, cmd, map[string]string{
		"log.level":       "log-level",
		"history.backend": "history-backend",
		"history.dsn":     "history-dsn",
	})

	return cmd
}

func (a *historyApp) filter() (storage.Filter, error) {
	f := storage.Filter{Query: a.query, Limit: a.limit, Offset: a.offset}
	if a.limit < 0 {
		return f, fmt.Errorf("limit must not be negative: %d", a.limit)
	}
	if a.offset < 0 {
		return f, fmt.Errorf("offset must not be negative: %d", a.offset)
	}
	if a.detectedSet {
		detected := a.detected
		f.DetectedBot = &detected
	}
	if a.mode != "" {
		m, err := serp.ParseMode(a.mode)
		if err != nil {
			return f, err
		}
		f.Mode = m.String()
	}
	if a.since > 0 {
		t := a.now().Add(-a.since)
		f.Since = &t
	}
	return f, nil
}

func (a *historyApp) run(cmd *cobra.Command, _ []string) error {
	a.detectedSet = cmd.Flags().Changed("detected")
	filter, err := a.filter()
	if err != nil {
		return err
	}

	write, err := reportWriter(a.format)
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
	backend, err := openBackend(ctx, cfg.History)
	if err != nil {
		return err
	}
	if backend == nil {
		return errors.New("search history is disabled: set history.backend and history.dsn")
	}
	defer backend.Close()

	records, err := backend.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	logger.Debug("history loaded", "records", len(records))

	return write(a.stdout, report.GenerateSummary(records))
}

func reportWriter(format string) (func(io.Writer, report.Summary) error, error) {
	switch strings.ToLower(format) {
	case "text":
		return report.WriteText, nil
	case "json":
		return report.WriteJSON, nil
	case "html":
		return report.WriteHTML, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}
