// Command refresh-tokens renews the stored Google tokens of every identity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.OpenBackends(ctx, cfg)
	if err != nil {
		sugar.Fatalf("open backends: %v", err)
	}
	defer backends.Close()

	svc := app.NewServices(cfg, backends, sugar)
	report, err := oauth.NewRefresher(svc.Broker, svc.Identities, sugar.Named("refresh")).RefreshAll(ctx)
	if err != nil {
		sugar.Fatalf("refresh tokens: %v", err)
	}
	if report.Failed > 0 {
		sugar.Warnw("some tokens could not be refreshed", "failed", report.Failed)
		os.Exit(2)
	}
}
