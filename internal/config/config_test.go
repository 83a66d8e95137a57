package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg)
	require.NoError(t, cfg.Validate())

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, rules.Upgrade, reg.Variant)
	assert.Equal(t, session.DirectRematch, reg.RematchPolicy)
	assert.Equal(t, 60*time.Second, reg.ChallengeTimeout)
}

func TestLoadServerConfig(t *testing.T) {
	path := writeFile(t, "server.hcl", `
server {
  port      = 9090
  log_level = "debug"
}

game {
  variant           = "classic"
  rematch_policy    = "direct"
  challenge_timeout = "30s"
}

bot "crane" {
  description = "house bot"
}

bot "origami" {}
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:9090", cfg.GetServerAddress())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, []string{"crane", "origami"}, cfg.BotNames())
	assert.Equal(t, "house bot", cfg.Bots[0].Description)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, rules.Classic, reg.Variant)
	assert.Equal(t, session.DirectRematch, reg.RematchPolicy)
	assert.Equal(t, 30*time.Second, reg.ChallengeTimeout)
}

func TestLoadServerConfigDefaultsRematchPerVariant(t *testing.T) {
	path := writeFile(t, "server.hcl", `
server {}

game {
  variant = "classic"
}
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, session.HandshakeRematch, reg.RematchPolicy)
	assert.Equal(t, 60*time.Second, reg.ChallengeTimeout)
}

func TestLoadServerConfigParseError(t *testing.T) {
	path := writeFile(t, "server.hcl", `server {`)

	_, err := LoadServerConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"bad port", func(c *ServerConfig) { c.Server.Port = 70000 }, "invalid port"},
		{"bad log level", func(c *ServerConfig) { c.Server.LogLevel = "loud" }, "invalid log level"},
		{"bad variant", func(c *ServerConfig) { c.Game.Variant = "lizard" }, "unknown variant"},
		{"bad rematch policy", func(c *ServerConfig) { c.Game.RematchPolicy = "sometimes" }, "unknown rematch policy"},
		{"bad timeout", func(c *ServerConfig) { c.Game.ChallengeTimeout = "soon" }, "invalid challenge_timeout"},
		{"zero timeout", func(c *ServerConfig) { c.Game.ChallengeTimeout = "0s" }, "must be positive"},
		{"duplicate bot", func(c *ServerConfig) {
			c.Bots = []BotConfig{{Name: "crane"}, {Name: "crane"}}
		}, "declared more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	path := writeFile(t, "client.hcl", `
server {
  url = "ws://example.com:8080/ws"
}

player {
  id = "alice"
}

ui {
  theme = "plain"
}
`)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://example.com:8080/ws", cfg.Server.URL)
	assert.Equal(t, "alice", cfg.Player.ID)
	assert.Equal(t, "general", cfg.Player.Channel)
	assert.Equal(t, "warn", cfg.UI.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.True(t, cfg.UI.ShowEmoji())
}

func TestLoadClientConfigEmojiOff(t *testing.T) {
	path := writeFile(t, "client.hcl", `
server {
  url = "ws://localhost:8080/ws"
}

player {
  id = "bob"
}

ui {
  emoji = false
}
`)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.UI.ShowEmoji())
	assert.Equal(t, "default", cfg.UI.Theme)
}

func TestClientConfigValidate(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.ErrorContains(t, cfg.Validate(), "player id is required")

	cfg.Player.ID = "alice"
	require.NoError(t, cfg.Validate())

	cfg.UI.Theme = "neon"
	assert.ErrorContains(t, cfg.Validate(), "invalid theme")
}
