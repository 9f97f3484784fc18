// Command inquirysync-sync copies new inquiry rows from the intake spreadsheet
// into Postgres and notifies staff about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"inquirysync/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		logger.Named("cli").Error().Err(err).Msg("inquirysync-sync failed")
		os.Exit(1)
	}
}
