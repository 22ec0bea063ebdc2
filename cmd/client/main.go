package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/sessionguard/internal/client/cli"
	"github.com/dmitrijs2005/sessionguard/internal/client/config"
	"github.com/dmitrijs2005/sessionguard/internal/flagx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("app init: %v", err)
	}

	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.ValueFlags)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
