package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/photon/internal/client"
	"github.com/danmuck/photon/internal/inspect"
	"github.com/danmuck/photon/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "photon: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("photon", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to photon TOML config")
	addr := fs.String("addr", "", "peer address (overrides config)")
	script := fs.String("script", "", "input script path, - for stdin")
	frameOut := fs.String("frame-out", "", "write the last frame as PNG on exit (overrides config)")
	inspectAddr := fs.String("inspect", "", "inspection HTTP address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.ConfigureRuntime()

	cfg := defaultRuntimeConfig()
	if *configPath != "" {
		loaded, err := loadRuntimeConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Client.Addr = *addr
	}
	if *frameOut != "" {
		cfg.FrameOutput = *frameOut
	}
	if *inspectAddr != "" {
		cfg.InspectAddr = *inspectAddr
	}

	var cmds []inputCommand
	if *script != "" {
		parsed, err := readScript(*script)
		if err != nil {
			return err
		}
		cmds = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cfg.Client, client.Deps{})
	if err != nil {
		return err
	}
	defer c.Close()
	log.Info().Str("session_id", c.SessionID()).Str("addr", cfg.Client.Addr).Msg("photon connected")

	var srv *inspect.Server
	if cfg.InspectAddr != "" {
		srv = inspect.New(inspect.Config{Addr: cfg.InspectAddr, Token: cfg.InspectToken}, c)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("inspection server stopped")
			}
		}()
	}

	c.Start(ctx)
	if len(cmds) > 0 {
		go func() {
			if err := runScript(ctx, c.Controller(), c.Done(), cmds); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("input script failed")
			}
		}()
	}

	<-c.Done()
	sessionErr := c.Err()
	if sessionErr != nil {
		log.Error().Err(sessionErr).Msg("session ended with error")
	} else {
		log.Info().Msg("session ended")
	}

	if cfg.FrameOutput != "" {
		if err := writeFrame(c, cfg.FrameOutput); err != nil {
			log.Error().Err(err).Str("path", cfg.FrameOutput).Msg("frame write failed")
		}
	}

	// The inspection surface stays up after the session ends so the last
	// document and frame can still be examined.
	if srv != nil && ctx.Err() == nil {
		log.Info().Str("addr", cfg.InspectAddr).Msg("session over; inspection server still running until interrupted")
		<-ctx.Done()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	if sessionErr != nil && !errors.Is(sessionErr, context.Canceled) {
		return sessionErr
	}
	return nil
}

func readScript(path string) ([]inputCommand, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseScript(r)
}

func writeFrame(c *client.Client, path string) error {
	frame := c.LastFrame()
	if frame == nil {
		return errors.New("no frame rendered")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := frame.EncodePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
