package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/gsearch/internal/storage"
	"github.com/FranksOps/gsearch/internal/storage/csvbackend"
	"github.com/FranksOps/gsearch/internal/storage/jsonbackend"
	"github.com/FranksOps/gsearch/internal/storage/postgres"
	"github.com/FranksOps/gsearch/internal/storage/sqlite"
)

// openBackend returns the configured history backend, or nil when history
// is disabled.
func openBackend(ctx context.Context, cfg HistoryConfig) (storage.Backend, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if kind == "" || kind == "none" {
		return nil, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required for the %s backend", kind)
	}

	switch kind {
	case "json":
		return jsonbackend.New(cfg.DSN)
	case "csv":
		return csvbackend.New(cfg.DSN)
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
}
