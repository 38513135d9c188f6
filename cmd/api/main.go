package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/dev"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
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
	sugar.Infow("starting service-auth-go", "stage", cfg.Stage, "backend", cfg.Backend)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.OpenBackends(ctx, cfg)
	if err != nil {
		sugar.Fatalf("open backends: %v", err)
	}
	defer backends.Close()

	svc := app.NewServices(cfg, backends, sugar)

	ping := dev.NewHandler(string(cfg.Stage), cfg.PingCacheTTL, cfg.PingCacheCapacity, sugar.Named("dev"))
	go ping.Start()
	defer ping.Stop()

	handler := router.RegisterRoutes(sugar, router.Handlers{
		Credential: credential.NewHandler(svc.Credentials, sugar.Named("credential")),
		OAuth: oauth.NewHandler(svc.Flow, svc.Sessions, oauth.HandlerConfig{
			Local:      cfg.IsLocal(),
			PublicHost: cfg.PublicHost,
		}, sugar.Named("oauth")),
		Dev: ping,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := backends.Ping(doneCtx); err != nil {
		sugar.Warnf("backend ping on shutdown failed: %v", err)
	}

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
