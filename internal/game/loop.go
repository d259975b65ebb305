// Package game drives a race session in real time and connects it to the
// websocket bridge.
package game

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/race"
	"github.com/zeusync/racer/internal/server"
)

// maxFrameDelta caps the time fed to one frame after a stall.
const maxFrameDelta = 0.25

// Status is a read-only snapshot of the session taken after each frame.
type Status struct {
	Phase    string  `json:"phase"`
	Fuel     float64 `json:"fuel"`
	Score    int     `json:"score"`
	MaxScore int     `json:"maxScore"`
	Clock    float64 `json:"clock"`
	Speed    float64 `json:"speed"`
	Surface  string  `json:"surface"`
	Frame    uint64  `json:"frame"`
	Level    string  `json:"level"`
}

// Loop owns the session. Only its goroutine may touch it.
type Loop struct {
	session   *race.Session
	commands  <-chan server.Command
	frameRate int
	logger    log.Log

	frames uint64
	status atomic.Pointer[Status]
}

func NewLoop(session *race.Session, commands <-chan server.Command, frameRate int, logger log.Log) *Loop {
	l := &Loop{
		session:   session,
		commands:  commands,
		frameRate: frameRate,
		logger:    logger.With(log.String("component", "loop")),
	}
	l.snapshot()
	return l
}

// Run ticks the session at the frame rate until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.frameRate))
	defer ticker.Stop()

	l.logger.Info("Loop started", log.Int("frame_rate", l.frameRate))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Loop stopped", log.Uint64("frames", l.frames))
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			l.Frame(dt)
		}
	}
}

// Frame drains pending commands and advances the session once.
func (l *Loop) Frame(dt float64) {
	l.drain()
	if dt > maxFrameDelta {
		dt = maxFrameDelta
	}
	if err := l.session.Update(dt); err != nil {
		l.logger.Warn("Frame update failed", log.Error(err))
	}
	l.frames++
	l.snapshot()
}

func (l *Loop) drain() {
	for {
		select {
		case cmd := <-l.commands:
			l.Apply(cmd)
		default:
			return
		}
	}
}

// Apply executes one client command. Invalid commands are ignored.
func (l *Loop) Apply(cmd server.Command) {
	var err error
	switch cmd.Action {
	case server.ActionPress:
		err = l.session.PressKey(cmd.Key)
	case server.ActionRelease:
		err = l.session.ReleaseKey(cmd.Key)
	case server.ActionStart:
		err = l.session.StartGame()
	}
	if err != nil {
		l.logger.Debug("Ignoring command",
			log.String("client_id", cmd.ClientID),
			log.String("action", cmd.Action),
			log.Error(err))
	}
}

func (l *Loop) snapshot() {
	st := l.session.State()
	l.status.Store(&Status{
		Phase:    st.Phase().String(),
		Fuel:     st.Fuel(),
		Score:    st.Score(),
		MaxScore: st.MaxScore(),
		Clock:    st.Clock(),
		Speed:    l.session.Vehicle().Speed(),
		Surface:  l.session.Surface(),
		Frame:    l.frames,
		Level:    l.session.LevelDigest(),
	})
}

// Status is safe to call from any goroutine.
func (l *Loop) Status() any {
	return l.status.Load()
}
