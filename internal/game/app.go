package game

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/race"
	"github.com/zeusync/racer/internal/server"
)

// App is the assembled process: one session, its loop and the bridge.
type App struct {
	Session *race.Session
	Loop    *Loop
	Server  *server.Server
	Logger  log.Log
}

// Run serves until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Loop.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Server.Close()
	})

	err := g.Wait()
	if cerr := a.Session.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.Logger.Info("Shutdown complete")
	return err
}
