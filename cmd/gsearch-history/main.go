// Command gsearch-history summarizes searches recorded by gsearch.
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
	code := cli.ExecuteHistory(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
