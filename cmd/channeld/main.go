package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"channeld/internal/app"
	"channeld/pkg/config"
	"channeld/pkg/logger"
	"channeld/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	eff, err := config.LoadEffective(cfgVal, addrVal, dbVal, setFlags)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(eff.Config.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server failed", err)
	}
}
