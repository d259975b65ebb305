package bus

import (
	"errors"
	"fmt"
	"sync"
)

// Scope groups subscriptions that share a lifetime. Closing the scope cancels
// every subscription made through it; further Subscribe calls fail.
type Scope struct {
	parent EventBus
	mu     sync.Mutex
	subs   []Subscription
	closed bool
}

// NewScope creates a Scope on top of the given bus.
func NewScope(parent EventBus) *Scope {
	return &Scope{parent: parent}
}

func (s *Scope) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrScopeClosed
	}
	sub, err := s.parent.Subscribe(eventType, handler)
	if err != nil {
		return nil, err
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// Len reports how many subscriptions the scope still holds.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close cancels all subscriptions. Multiple calls are safe.
func (s *Scope) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.mu.Unlock()

	var all error
	for _, sub := range subs {
		if err := sub.Cancel(); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

// SubscribeTyped registers a handler receiving the event payload as T.
// A payload of another type makes the handler return ErrPayloadType.
func SubscribeTyped[T any](s Subscriber, eventType string, handler func(T) error) (Subscription, error) {
	return s.Subscribe(eventType, func(e Event) error {
		payload, ok := e.Data().(T)
		if !ok {
			return fmt.Errorf("%w: %s carries %T", ErrPayloadType, eventType, e.Data())
		}
		return handler(payload)
	})
}
