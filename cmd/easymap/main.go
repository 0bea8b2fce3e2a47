package main

import (
	"context"
	"easymap-backend/cmd/easymap/commands"
	"easymap-backend/lib/configutil"
	"easymap-backend/lib/telemetry"
	"log/slog"
)

func main() {
	configutil.LoadDotenv(".env")

	err := telemetry.SetupFromEnv(context.Background(), "easymap")
	if err != nil {
		slog.Debug("telemetry disabled", "err", err)
	}
	defer telemetry.Shutdown(context.Background())

	commands.ExecuteContext(context.Background())
}
