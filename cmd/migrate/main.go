// Command migrate creates the credential and identity tables with their
// index tables.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	if cfg.Backend == config.BackendMemory {
		sugar.Info("memory backend has no tables to migrate")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backends, err := app.OpenBackends(ctx, cfg)
	if err != nil {
		sugar.Fatalf("open backends: %v", err)
	}
	defer backends.Close()

	if err := backends.EnsureTables(ctx); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}
	sugar.Infow("tables ready", "auth", cfg.AuthTableName, "users", cfg.UserTableName)
}
