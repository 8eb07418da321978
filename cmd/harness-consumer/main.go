// Command harness-consumer subscribes to every conversation topic under a
// unique group id and prints each decoded envelope, serving as the oracle
// for the end-to-end properties in §8.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/config"
	"github.com/zedaapi/eventspine/internal/harness"
	"github.com/zedaapi/eventspine/internal/logging"
)

func main() {
	groupID := flag.String("group", "harness-"+randSuffix(), "unique consumer group id")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With(slog.String("component", "harness-consumer"))

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	client := bus.NewClient(busCfg, log, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		log.Error("bus connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	topics := make([]string, 0, len(bus.Registry))
	for _, t := range bus.Registry {
		topics = append(topics, t.Name)
	}

	log.Info("harness consumer subscribing", slog.String("group", *groupID), slog.Int("topics", len(topics)))

	err = harness.Consume(ctx, client, *groupID, topics, log, func(o harness.Observed) {
		line, formatErr := harness.FormatObserved(o)
		if formatErr != nil {
			log.Warn("format observed envelope failed", slog.String("error", formatErr.Error()))
			return
		}
		fmt.Println(line)
	})
	if err != nil {
		log.Error("harness consumer exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// randSuffix gives each unflagged run a distinct default group id so
// repeated invocations don't resume a stale durable consumer's position.
func randSuffix() string {
	return fmt.Sprintf("%d", os.Getpid())
}
