package main

import (
	"context"
	"easymap-backend/lib/configutil"
	"easymap-backend/lib/landnumber"
	"easymap-backend/lib/telemetry"
	"easymap-backend/lib/towninfo"
	"easymap-backend/lib/util/serviceutil"
	landnumbersvc "easymap-backend/services/landnumber"
	"log/slog"
)

func main() {
	ctx := serviceutil.SignalContext()

	configutil.LoadDotenv(".env")
	config, err := loadConfig("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Verbose)

	err = telemetry.SetupFromEnv(ctx, "landnumberd")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	} else {
		telemetry.InstrumentPerfStats(ctx)
	}
	defer telemetry.Shutdown(context.Background())

	repoOpts, err := config.repositoryOptions()
	if err != nil {
		serviceutil.Fatal("failed to resolve cache directory", err)
	}
	repo, err := towninfo.NewRepository(repoOpts)
	if err != nil {
		serviceutil.Fatal("failed to create code table repository", err)
	}
	slog.Info("caching code tables", "dir", repo.CacheDir())

	resolver := landnumber.NewResolver(repo, config.sessionOptions())
	service := landnumbersvc.NewService(resolver)

	err = serviceutil.StartHttpServer(ctx, config.ListenPort, service.Routes())
	if err != nil {
		serviceutil.Fatal("http server stopped", err)
	}
}
