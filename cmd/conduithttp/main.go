package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"conduithttp/internal/app"
	"conduithttp/pkg/banner"
	"conduithttp/pkg/config"
	"conduithttp/pkg/logger"
	"conduithttp/pkg/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")
	logger.Init()

	flags, err := config.ParseConfigFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		shutdown.Abort("failed to parse flags", err, "", 0)
	}

	fileCfg, fileExists, err := config.ParseConfigFile(flags, os.Getenv)
	if err != nil {
		shutdown.Abort("failed to load config file", err, "", 0)
	}

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, os.Getenv)
	if err != nil {
		shutdown.Abort("failed to build effective config", err, "", 0)
	}
	crashDir := eff.Config.Server.CrashDir

	if err := config.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err, crashDir, 0)
	}

	// re-initialize now that the configured level is known
	logger.InitWithLevel(eff.Config.Logging.Level)
	defer logger.Sync()
	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "transport", eff.Config.Server.Transport)

	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr += " @ " + buildDate
	}
	banner.Print(os.Stdout, eff, verStr)

	a, err := app.New(eff, version, nil)
	if err != nil {
		shutdown.Abort("failed to initialize app", err, crashDir)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("app run failed", err, crashDir)
	}

	// bounded so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), eff.Config.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}
