package main

import (
	"context"
	"dph-tracker/cmd/dph-tracker/commands"
	"dph-tracker/internal/telemetry"
	"dph-tracker/lib/serviceutil"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	ctx := serviceutil.SignalContext(context.Background())

	tel, err := telemetry.SetupFromEnv(ctx, "dph-tracker")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownErr := tel.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("failed to shutdown telemetry", "err", shutdownErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
