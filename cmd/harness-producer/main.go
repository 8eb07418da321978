// Command harness-producer injects a synthetic MessageReceived event for
// deterministic end-to-end runs against the properties in §8.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/config"
	"github.com/zedaapi/eventspine/internal/harness"
	"github.com/zedaapi/eventspine/internal/logging"
)

func main() {
	phone := flag.String("phone", "15551234567", "partition key / from_phone for the synthetic message")
	body := flag.String("body", "hello from the harness", "text body of the synthetic message")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With(slog.String("component", "harness-producer"))

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	client := bus.NewClient(busCfg, log, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		log.Error("bus connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	eventID, err := harness.ProduceMessage(ctx, client, *phone, *body)
	if err != nil {
		log.Error("produce failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("synthetic message published", slog.String("event_id", eventID.String()), slog.String("phone", *phone))
}
