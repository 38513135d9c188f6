// Command truncate deletes every stored credential. It refuses to run
// without -confirm.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

func main() {
	confirm := flag.Bool("confirm", false, "actually delete all credentials")
	flag.Parse()

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

	if !*confirm {
		sugar.Fatalw("refusing to truncate without -confirm", "table", cfg.AuthTableName)
	}
	if cfg.Stage == config.StageProd {
		sugar.Warnw("truncating credentials in prod", "table", cfg.AuthTableName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backends, err := app.OpenBackends(ctx, cfg)
	if err != nil {
		sugar.Fatalf("open backends: %v", err)
	}
	defer backends.Close()

	n, err := app.NewServices(cfg, backends, sugar).Credentials.Truncate(ctx)
	if err != nil {
		sugar.Fatalf("truncate: %v", err)
	}
	sugar.Infow("credentials deleted", "count", n, "table", cfg.AuthTableName)
}
