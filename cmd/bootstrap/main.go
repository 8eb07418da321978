// Command bootstrap provisions the event bus topology (streams for every
// topic in the registry) and exits. Run it once before starting the
// webhook and dispatcher services, or as a Kubernetes init container.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zedaapi/eventspine/internal/bootstrap"
	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/config"
	"github.com/zedaapi/eventspine/internal/database"
	"github.com/zedaapi/eventspine/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With(slog.String("component", "bootstrap"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, 60*time.Second)
	defer timeoutCancel()

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	busCfg.ConsumerGroupID = cfg.Bus.ConsumerGroupID

	client := bus.NewClient(busCfg, log, nil)
	defer client.Close()

	if err := bootstrap.Provision(ctx, client, log, bootstrap.DefaultOptions()); err != nil {
		log.Error("provisioning failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := database.EnsureDatabaseExists(ctx, cfg.Postgres.DSN, log); err != nil {
		log.Error("database provisioning failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("database connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema provisioning failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("bootstrap complete")
}
