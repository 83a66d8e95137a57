// Package config loads the HCL configuration files of the server and the
// terminal client.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/rockpapercrane/internal/registry"
	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
	Bots   []BotConfig    `hcl:"bot,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// GameSettings selects the rules new sessions are played with.
type GameSettings struct {
	Variant          string `hcl:"variant,optional"`
	RematchPolicy    string `hcl:"rematch_policy,optional"`
	ChallengeTimeout string `hcl:"challenge_timeout,optional"`
}

// BotConfig declares a participant identity that cannot be challenged.
type BotConfig struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			Variant:          rules.Upgrade.String(),
			ChallengeTimeout: registry.DefaultChallengeTimeout.String(),
		},
	}
}

// LoadServerConfig reads filename, filling anything left out with the
// defaults. A missing file is not an error.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	var cfg ServerConfig
	found, err := decodeFile(filename, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultServerConfig(), nil
	}

	defaults := DefaultServerConfig()
	setDefault(&cfg.Server.Address, defaults.Server.Address)
	setDefault(&cfg.Server.Port, defaults.Server.Port)
	setDefault(&cfg.Server.LogLevel, defaults.Server.LogLevel)
	setDefault(&cfg.Game.Variant, defaults.Game.Variant)
	setDefault(&cfg.Game.ChallengeTimeout, defaults.Game.ChallengeTimeout)
	return &cfg, nil
}

// decodeFile decodes an HCL file into target. It reports false without
// touching target when the file does not exist.
func decodeFile(filename string, target any) (bool, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	file, diags := hclparse.NewParser().ParseHCLFile(filename)
	if diags.HasErrors() {
		return false, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	if diags := gohcl.DecodeBody(file.Body, nil, target); diags.HasErrors() {
		return false, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	return true, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}
	if _, err := c.Registry(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, bot := range c.Bots {
		if bot.Name == "" {
			return fmt.Errorf("bot name must not be empty")
		}
		if seen[bot.Name] {
			return fmt.Errorf("bot %s: declared more than once", bot.Name)
		}
		seen[bot.Name] = true
	}
	return nil
}

// Registry converts the game block into registry settings. An empty
// rematch policy picks the variant's default.
func (c *ServerConfig) Registry() (registry.Config, error) {
	variant, err := rules.ParseVariant(c.Game.Variant)
	if err != nil {
		return registry.Config{}, fmt.Errorf("game: %w", err)
	}

	policy := session.DefaultRematchPolicy(variant)
	if c.Game.RematchPolicy != "" {
		policy, err = session.ParseRematchPolicy(c.Game.RematchPolicy)
		if err != nil {
			return registry.Config{}, fmt.Errorf("game: %w", err)
		}
	}

	timeout, err := time.ParseDuration(c.Game.ChallengeTimeout)
	if err != nil {
		return registry.Config{}, fmt.Errorf("game: invalid challenge_timeout %q: %w", c.Game.ChallengeTimeout, err)
	}
	if timeout <= 0 {
		return registry.Config{}, fmt.Errorf("game: challenge_timeout must be positive, got %s", timeout)
	}

	return registry.Config{
		Variant:          variant,
		RematchPolicy:    policy,
		ChallengeTimeout: timeout,
	}, nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// BotNames returns the configured bot identities.
func (c *ServerConfig) BotNames() []string {
	names := make([]string, 0, len(c.Bots))
	for _, bot := range c.Bots {
		names = append(names, bot.Name)
	}
	return names
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}
