package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/rockpapercrane/internal/config"
	"github.com/lox/rockpapercrane/internal/loop"
	"github.com/lox/rockpapercrane/internal/registry"
	"github.com/lox/rockpapercrane/internal/server"
)

// ServerCmd runs the WebSocket game server
type ServerCmd struct {
	Config   string        `short:"c" default:"rockpapercrane-server.hcl" help:"Path to HCL configuration file"`
	Addr     string        `short:"a" help:"Address to bind to, host:port (overrides config)"`
	LogLevel string        `short:"l" help:"Log level (overrides config)"`
	Variant  string        `help:"Game variant, classic or upgrade (overrides config)"`
	Rematch  string        `help:"Rematch policy, handshake or direct (overrides config)"`
	Timeout  time.Duration `help:"How long a challenge waits for an answer (overrides config)"`
	Bot      []string      `help:"Extra participant IDs that cannot be challenged"`
}

// load reads the configuration file and applies flag overrides.
func (c *ServerCmd) load() (*config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig(c.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Variant != "" {
		cfg.Game.Variant = c.Variant
		// The variant's own default applies unless a policy is given too
		cfg.Game.RematchPolicy = ""
	}
	if c.Rematch != "" {
		cfg.Game.RematchPolicy = c.Rematch
	}
	if c.Timeout != 0 {
		cfg.Game.ChallengeTimeout = c.Timeout.String()
	}
	for _, name := range c.Bot {
		cfg.Bots = append(cfg.Bots, config.BotConfig{Name: name})
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServerCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	settings, err := cfg.Registry()
	if err != nil {
		return err
	}

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger, closeLog, err := newLogger(cfg.Server.LogLevel, cfg.Server.LogFile, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := loop.New(logger, 0)
	directory := server.NewBotDirectory(cfg.BotNames()...)
	reg := registry.New(settings, events, logger, registry.WithDirectory(directory))
	srv := server.NewServer(addr, registry.NewService(reg, events), directory, logger)

	logger.Info("Starting rock paper crane server",
		"addr", addr,
		"variant", settings.Variant,
		"rematch", settings.RematchPolicy,
		"challengeTimeout", settings.ChallengeTimeout,
		"bots", len(cfg.Bots))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return events.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	// The loop has stopped, nothing else touches the registry now
	reg.Close()

	if errors.Is(err, context.Canceled) {
		logger.Info("Server stopped")
		return nil
	}
	return err
}
