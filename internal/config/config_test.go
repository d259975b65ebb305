package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/race"
	"github.com/zeusync/racer/internal/server"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
server:
  listenAddr: 0.0.0.0:9000
  clientTimeout: 30s
race:
  fuel:
    start: 20
  checkpoints:
    finishThreshold: 2
  countdown:
    labels: ["ready", "go"]
  keys:
    arrowup: forward
`))
	require.NoError(t, err)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.ClientTimeout)
	assert.Equal(t, server.DefaultServerConfig().MaxClients, cfg.Server.MaxClients)
	assert.Equal(t, 20.0, cfg.Race.Fuel.Start)
	assert.Equal(t, 100.0, cfg.Race.Fuel.Max)
	assert.Equal(t, 2, cfg.Race.Checkpoints.FinishThreshold)
	assert.Equal(t, 2*time.Second, cfg.Race.Checkpoints.DestroyDelay)
	assert.Equal(t, []string{"ready", "go"}, cfg.Race.Countdown.Labels)

	b, err := cfg.Race.Bindings()
	require.NoError(t, err)
	assert.Equal(t, race.Forward, b["arrowup"])
	assert.Equal(t, race.Forward, b["w"])
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "nope: 1",
		"bad level":    "log: {level: loud}",
		"bad encoding": "log: {encoding: xml}",
		"bad frames":   "loop: {frameRate: 0}",
		"bad race":     "race: {fuel: {start: 500}}",
		"bad server":   "server: {maxClients: 0}",
		"bad control":  "race: {keys: {q: fly}}",
		"empty level":  "level: ''",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadResolvesLevelPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "racer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: tracks/loop.yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tracks", "loop.yaml"), cfg.Level)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
