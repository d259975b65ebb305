package race

import (
	"github.com/zeusync/racer/internal/race/events"
)

// Countdown announces the start of the race. After the initial delay every
// label but the last is published as a countdown tick, one step apart; the
// last label starts the race.
type Countdown struct {
	notify *notifier
	labels []string
	delay  float64
	step   float64

	elapsed float64
	next    int
	running bool
}

func NewCountdown(cfg CountdownConfig, n *notifier) *Countdown {
	return &Countdown{
		notify: n,
		labels: cfg.Labels,
		delay:  cfg.Delay.Seconds(),
		step:   cfg.Step.Seconds(),
	}
}

func (c *Countdown) Start() {
	c.elapsed = 0
	c.next = 0
	c.running = true
}

func (c *Countdown) Running() bool { return c.running }

// Label is the most recent label, "" before the first one.
func (c *Countdown) Label() string {
	if c.next == 0 {
		return ""
	}
	return c.labels[c.next-1]
}

func (c *Countdown) Update(dt float64) {
	if !c.running {
		return
	}
	c.elapsed += dt
	for c.running && c.elapsed >= c.delay+float64(c.next)*c.step {
		label := c.labels[c.next]
		c.next++
		if c.next == len(c.labels) {
			c.running = false
			c.notify.publish(events.RaceStart, events.Start{})
			return
		}
		c.notify.publish(events.Countdown, events.Tick{Label: label})
	}
}

// Cancel stops the countdown without starting the race.
func (c *Countdown) Cancel() {
	c.running = false
}
