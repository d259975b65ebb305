package race

import (
	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
)

// notifier publishes session notifications. Handler failures are logged and
// never reach the simulation.
type notifier struct {
	bus    bus.EventBus
	source string
	log    log.Log
}

func (n *notifier) publish(topic string, data any) {
	if n == nil || n.bus == nil {
		return
	}
	if err := n.bus.Publish(bus.NewEvent(topic, n.source, data)); err != nil {
		n.log.Warn("notification handler failed",
			log.String("topic", topic),
			log.Error(err),
		)
	}
}
