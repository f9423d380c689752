package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gsearch/internal/serp"
	"github.com/FranksOps/gsearch/pkg/useragent"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG", "SEARCH_URL", "USER_AGENTS", "TIMEOUT", "FINGERPRINT", "PROXY",
		"STRICT_EXIT", "LOG_LEVEL", "HISTORY_BACKEND", "HISTORY_DSN", "METRICS_TEXTFILE",
	} {
		t.Setenv(envPrefix+"_"+key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newViper(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.SearchURL != serp.DefaultSearchURL {
		t.Errorf("Expected default search URL, got %s", cfg.SearchURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRedirects != 10 {
		t.Errorf("Expected 10 redirects, got %d", cfg.MaxRedirects)
	}
	if len(cfg.UserAgents) != 1 || cfg.UserAgents[0] != useragent.Default {
		t.Errorf("Expected default user agent, got %v", cfg.UserAgents)
	}
	if cfg.Fingerprint != "go" || cfg.StrictExit || cfg.LegacyQueryEncoding {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Errorf("Expected warn/text logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.History.Backend != "none" {
		t.Errorf("Expected history disabled, got %s", cfg.History.Backend)
	}
	if cfg.selectors() != serp.GoogleSelectors {
		t.Errorf("Expected Google selectors, got %+v", cfg.selectors())
	}
}

func TestLoadConfig_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("GSEARCH_TIMEOUT", "5s")
	t.Setenv("GSEARCH_STRICT_EXIT", "true")
	t.Setenv("GSEARCH_USER_AGENTS", "Agent/1 (A, B)\n\nAgent/2 (C, D)")
	t.Setenv("GSEARCH_SELECTORS_CONTAINER", ".g")

	cfg, err := loadConfig(newViper(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.Timeout)
	}
	if !cfg.StrictExit {
		t.Error("Expected strict exit from env")
	}
	pool := useragent.NewPool(cfg.UserAgents)
	if got := pool.All(); len(got) != 2 || got[0] != "Agent/1 (A, B)" || got[1] != "Agent/2 (C, D)" {
		t.Errorf("Expected two user agents split on newlines, got %q", got)
	}
	if sel := cfg.selectors(); sel.Container != ".g" || sel.Title != serp.GoogleSelectors.Title {
		t.Errorf("Expected container override only, got %+v", sel)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"GSEARCH_FINGERPRINT": "netscape",
		"GSEARCH_PROXY":       "not a proxy",
		"GSEARCH_TIMEOUT":     "-1s",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := loadConfig(newViper(), ""); err == nil {
				t.Errorf("Expected error for %s=%q", key, val)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, LogConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "url", "https://example.com")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("Expected debug record to be filtered")
	}
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("Expected JSON record, got %s", buf.String())
	}

	if _, err := newLogger(&buf, LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
	if _, err := newLogger(&buf, LogConfig{Level: "warn", Format: "xml"}); err == nil {
		t.Error("Expected error for invalid format")
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	if b, err := openBackend(ctx, HistoryConfig{Backend: "none"}); b != nil || err != nil {
		t.Errorf("Expected no backend for none, got %v/%v", b, err)
	}
	if _, err := openBackend(ctx, HistoryConfig{Backend: "sqlite"}); err == nil {
		t.Error("Expected error for missing dsn")
	}
	if _, err := openBackend(ctx, HistoryConfig{Backend: "mongo", DSN: "x"}); err == nil {
		t.Error("Expected error for unknown backend")
	}

	for kind, file := range map[string]string{"json": "h.jsonl", "csv": "h.csv", "sqlite": "h.db"} {
		b, err := openBackend(ctx, HistoryConfig{Backend: kind, DSN: filepath.Join(dir, file)})
		if err != nil {
			t.Errorf("%s: unexpected error: %v", kind, err)
			continue
		}
		b.Close()
	}
}
