// Command etl builds the Kawabou station master and the realtime dam
// snapshot, either once or on a schedule.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Dam telemetry ETL for the Kawabou river information service",
	Long: `etl maps Kawabou dam stations to a curated dam list and publishes a
realtime snapshot of storage rate, water level, inflow and outflow.

Run "etl master" to rebuild the station master, "etl realtime" for a single
snapshot, or "etl serve" to refresh the snapshot on an interval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Variables already set in the environment take precedence over .env.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
