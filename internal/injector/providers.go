package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/racer/internal/config"
	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/core/observability/metrics"
	"github.com/zeusync/racer/internal/game"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race"
	"github.com/zeusync/racer/internal/race/events"
	"github.com/zeusync/racer/internal/server"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideBus,
	ProvideLevel,
	ProvideSession,
	ProvideServer,
	ProvideLoop,
	wire.Struct(new(game.App), "*"),
)

func ProvideLogger(cfg config.Config) (log.Log, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(log.Options{Level: level, Encoding: cfg.Log.Encoding}), nil
}

func ProvideRegistry(cfg config.Config) *metrics.Registry {
	return metrics.NewRegistry(cfg.Metrics.Runtime)
}

// ProvideBus builds the notification bus with metrics attached.
func ProvideBus(cfg config.Config, reg *metrics.Registry) (bus.EventBus, error) {
	b := bus.New()
	if !cfg.Metrics.Enabled {
		return b, nil
	}
	b.AddObserver(reg.Bus)
	if err := reg.Race.Bind(b); err != nil {
		return nil, err
	}
	return b, nil
}

func ProvideLevel(cfg config.Config) (*level.Level, error) {
	return level.Load(cfg.Level)
}

func ProvideSession(cfg config.Config, lvl *level.Level, b bus.EventBus, logger log.Log, reg *metrics.Registry) (*race.Session, func(), error) {
	var opts []race.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, race.WithRecorder(reg.Systems))
	}
	s, err := race.NewSession(cfg.Race, lvl, b, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

// ProvideServer builds the websocket bridge and forwards every race topic.
func ProvideServer(cfg config.Config, b bus.EventBus, logger log.Log, reg *metrics.Registry) (*server.Server, func(), error) {
	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(reg.Handler()))
	}
	srv := server.NewServer(cfg.Server, logger, opts...)
	if err := srv.Bind(b, events.All...); err != nil {
		return nil, nil, err
	}
	return srv, func() { _ = srv.Close() }, nil
}

func ProvideLoop(cfg config.Config, s *race.Session, srv *server.Server, logger log.Log) *game.Loop {
	loop := game.NewLoop(s, srv.Commands(), cfg.Loop.FrameRate, logger)
	srv.SetStatus(loop.Status)
	return loop
}
