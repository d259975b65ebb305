package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/racer/internal/config"
	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/injector"
)

func main() {
	configPath := flag.String("config", "configs/racer.yaml", "path to the racer configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting racer:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("Racer starting",
		log.String("level", app.Session.Level().Name),
		log.String("listen_addr", cfg.Server.ListenAddr))

	if err = app.Run(ctx); err != nil {
		app.Logger.Error("Racer stopped with error", log.Error(err))
		cleanup()
		os.Exit(1)
	}
}
