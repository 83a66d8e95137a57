package config

import (
	"errors"
	"fmt"
	"time"
)

// ClientConfig is the layout of rockpapercrane-client.hcl.
type ClientConfig struct {
	Server ServerConnection `hcl:"server,block"`
	Player PlayerSettings   `hcl:"player,block"`
	UI     UISettings       `hcl:"ui,block"`
}

// ServerConnection says where to dial and how long to wait. Timeouts are
// whole seconds.
type ServerConnection struct {
	URL            string `hcl:"url"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"`
	RequestTimeout int    `hcl:"request_timeout,optional"`
}

// PlayerSettings identifies the player towards the server.
type PlayerSettings struct {
	ID      string `hcl:"id"`
	Channel string `hcl:"channel,optional"`
}

// UISettings controls the terminal interface. Emoji is a pointer so an
// omitted attribute keeps the default of showing glyphs.
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	Theme    string `hcl:"theme,optional"`
	Emoji    *bool  `hcl:"emoji,optional"`
}

// ShowEmoji reports whether item names get their glyph.
func (u UISettings) ShowEmoji() bool {
	return u.Emoji == nil || *u.Emoji
}

// DefaultClientConfig is what the client runs with when no file exists.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.fillDefaults()
	return cfg
}

// LoadClientConfig reads filename, filling anything left out with the
// defaults. A missing file is not an error.
func LoadClientConfig(filename string) (*ClientConfig, error) {
	var cfg ClientConfig
	found, err := decodeFile(filename, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultClientConfig(), nil
	}
	cfg.fillDefaults()
	return &cfg, nil
}

func (c *ClientConfig) fillDefaults() {
	setDefault(&c.Server.URL, "ws://localhost:8080/ws")
	setDefault(&c.Server.ConnectTimeout, 10)
	setDefault(&c.Server.RequestTimeout, 30)
	setDefault(&c.Player.Channel, "general")
	setDefault(&c.UI.LogLevel, "warn")
	setDefault(&c.UI.LogFile, "rockpapercrane-client.log")
	setDefault(&c.UI.Theme, "default")
}

// setDefault assigns def when *field still holds its zero value.
func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

var themes = map[string]bool{"default": true, "plain": true}

// Validate reports the first setting the client cannot run with.
func (c *ClientConfig) Validate() error {
	switch {
	case c.Server.URL == "":
		return errors.New("server URL is required")
	case c.Player.ID == "":
		return errors.New("player id is required")
	case c.Server.ConnectTimeout <= 0, c.Server.RequestTimeout <= 0:
		return errors.New("server timeouts must be positive")
	case !validLogLevels[c.UI.LogLevel]:
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	case !themes[c.UI.Theme]:
		return fmt.Errorf("invalid theme: %s", c.UI.Theme)
	}
	return nil
}

// ConnectTimeout returns the dial timeout.
func (c *ClientConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeout) * time.Second
}

// RequestTimeout returns how long to wait for a reply to a request.
func (c *ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}
