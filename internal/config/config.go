// Package config loads the racer's YAML configuration.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/race"
	"github.com/zeusync/racer/internal/server"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  server.Config `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Loop    LoopConfig    `yaml:"loop"`
	Race    race.Config   `yaml:"race"`
	// Level is the track file. Relative paths resolve against the config file.
	Level string `yaml:"level"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Runtime bool `yaml:"runtime"`
}

type LoopConfig struct {
	FrameRate int `yaml:"frameRate"`
}

func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info", Encoding: "json"},
		Server:  server.DefaultServerConfig(),
		Metrics: MetricsConfig{Enabled: true, Runtime: true},
		Loop:    LoopConfig{FrameRate: 60},
		Race:    race.DefaultConfig(),
		Level:   "levels/loop.yaml",
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	if cfg.Level != "" && !filepath.IsAbs(cfg.Level) {
		cfg.Level = filepath.Join(filepath.Dir(path), cfg.Level)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return errors.Wrap(err, "log")
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return errors.Errorf("log: unknown encoding %q", c.Log.Encoding)
	}
	if err := c.Server.Validate(); err != nil {
		return errors.Wrap(err, "server")
	}
	if c.Loop.FrameRate <= 0 {
		return errors.New("loop: frameRate must be positive")
	}
	if err := c.Race.Validate(); err != nil {
		return errors.Wrap(err, "race")
	}
	if c.Level == "" {
		return errors.New("level path is empty")
	}
	return nil
}

func (c Config) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}
