package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/lox/rockpapercrane/internal/client"
	"github.com/lox/rockpapercrane/internal/config"
	"github.com/lox/rockpapercrane/internal/render"
	"github.com/lox/rockpapercrane/internal/server"
	"github.com/lox/rockpapercrane/internal/tui"
)

// ClientCmd connects to a server and opens the terminal UI
type ClientCmd struct {
	Config   string `short:"c" default:"rockpapercrane-client.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Server URL to connect to (overrides config)"`
	Player   string `short:"p" help:"Player ID (overrides config)"`
	Channel  string `help:"Channel to play in (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	Plain    bool   `help:"Disable colours and emoji"`
}

func (c *ClientCmd) load() (*config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(c.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Player != "" {
		cfg.Player.ID = c.Player
	}
	if c.Channel != "" {
		cfg.Player.Channel = c.Channel
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}
	if c.Plain {
		noEmoji := false
		cfg.UI.Theme = "plain"
		cfg.UI.Emoji = &noEmoji
	}

	if cfg.Player.ID == "" {
		fmt.Print("Enter your player ID: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.ID = strings.TrimSpace(input)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// renderOptions maps the UI theme onto a colour profile.
func renderOptions(ui config.UISettings) render.Options {
	profile := termenv.ColorProfile()
	if ui.Theme == "plain" {
		profile = termenv.Ascii
	}
	return render.Options{Emoji: ui.ShowEmoji(), Profile: profile}
}

func (c *ClientCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs always go to a file
	logger, closeLog, err := newLogger(cfg.UI.LogLevel, cfg.UI.LogFile, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("Starting rock paper crane client",
		"server", cfg.Server.URL,
		"player", cfg.Player.ID,
		"channel", cfg.Player.Channel,
		"config", c.Config)

	wsClient := client.NewClient(cfg.Server.URL, logger)
	if err := wsClient.Connect(cfg.ConnectTimeout()); err != nil {
		return err
	}
	defer func() { _ = wsClient.Disconnect() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	err = wsClient.Auth(ctx, cfg.Player.ID, cfg.Player.Channel)
	cancel()
	if err != nil {
		return err
	}

	model := tui.NewModel(wsClient, tui.Options{
		PlayerID:       cfg.Player.ID,
		Render:         renderOptions(cfg.UI),
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	wsClient.AddEventHandler(server.MessageTypeEvent, tui.ForwardEvents(program.Send, logger))

	go func() {
		<-wsClient.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
