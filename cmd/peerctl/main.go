package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/photon/internal/config"
	"github.com/danmuck/photon/internal/logging"
)

func main() {
	scenarioPath := flag.String("scenario", "cmd/peerctl/scenario.toml", "scenario TOML to replay")
	listen := flag.String("listen", "", "listen address (overrides scenario)")
	flag.Parse()

	logging.ConfigureRuntime()

	sc, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerctl: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		sc.Listen = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPeer(sc, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerctl: %v\n", err)
		os.Exit(1)
	}
	if err := p.ListenAndReplay(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "peerctl: %v\n", err)
		os.Exit(1)
	}
}
