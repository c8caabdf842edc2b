package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/bootstrap"
)

func main() {
	configDir := flag.String("config", "", "override CONFIG_DIR")
	flag.Parse()

	if *configDir != "" {
		_ = os.Setenv("CONFIG_DIR", *configDir)
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() { <-quit; cancel() }()

	log := logger.NewLogger("tracking-service")
	defer log.Close()

	bootstrap.Run(ctx, cfg, log)
}
