// Command gsearch scrapes one Google result page and prints the results as
// JSON.
//
//	gsearch <search_term>... <number_of_results> [images]
//
// Configuration is read from the file named by --config or GSEARCH_CONFIG
// and from GSEARCH_* environment variables, e.g. GSEARCH_TIMEOUT=10s or
// GSEARCH_HISTORY_BACKEND=sqlite.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/gsearch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
