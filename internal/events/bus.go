// Package events implements the in-process publish-subscribe event bus
// and the concurrent notification fan-out to session
// controllers.
package events

import (
	"context"
	"log/slog"
	"sync"

	"mediahub.app/sessioncore/internal/core"
)

// Bus is a typed, in-process pub/sub. Each subscriber is served by its own
// background worker draining a per-subscriber FIFO queue, so a slow or
// misbehaving handler can never block the publishing caller, and two events
// from the same Publish-ing goroutine (e.g. SessionStarted then
// SessionActivity for the same session) are always observed by a given
// listener in the order they were published.
type Bus struct {
	logger *slog.Logger

	mu   chan struct{} // 1-buffered channel used as the mutex guarding subs
	subs []*subscriber
}

// subscriber is one listener's ordered event queue and the goroutine that
// drains it.
type subscriber struct {
	fn func(core.Event)

	cmu   sync.Mutex
	cond  *sync.Cond
	queue []core.Event
}

func newSubscriber(fn func(core.Event)) *subscriber {
	s := &subscriber{fn: fn}
	s.cond = sync.NewCond(&s.cmu)
	return s
}

func (s *subscriber) enqueue(evt core.Event) {
	s.cmu.Lock()
	s.queue = append(s.queue, evt)
	s.cmu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) run(logger *slog.Logger) {
	for {
		s.cmu.Lock()
		for len(s.queue) == 0 {
			s.cond.Wait()
		}
		evt := s.queue[0]
		s.queue = s.queue[1:]
		s.cmu.Unlock()

		s.deliver(evt, logger)
	}
}

func (s *subscriber) deliver(evt core.Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event_listener_panic", slog.Any("panic", r), slog.String("event", string(evt.Kind)))
		}
	}()
	s.fn(evt)
}

// NewBus builds an event bus. logger may be nil.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bus{logger: logger, mu: make(chan struct{}, 1)}
	b.mu <- struct{}{}
	return b
}

// Subscribe registers fn to be invoked for every published event, in
// publish order. There is no unsubscribe — listeners are expected to live
// for the process lifetime.
func (b *Bus) Subscribe(fn func(core.Event)) {
	sub := newSubscriber(fn)
	go sub.run(b.logger)

	<-b.mu
	b.subs = append(b.subs, sub)
	b.mu <- struct{}{}
}

// Publish enqueues evt onto every subscriber's ordered queue. It never
// blocks on a listener: enqueueing only takes the per-subscriber queue lock
// briefly, and delivery happens on that subscriber's own worker goroutine.
func (b *Bus) Publish(evt core.Event) {
	<-b.mu
	subs := append([]*subscriber{}, b.subs...)
	b.mu <- struct{}{}

	for _, sub := range subs {
		sub.enqueue(evt)
	}
}

// Target pairs a live controller with the session snapshot a notification
// call needs.
type Target struct {
	SessionID  string
	Controller Controller
	Dto        core.SessionDto
}

// Controller is the subset of ports.SessionController the fan-out needs.
// Declared locally so this package does not need to import ports (which in
// turn keeps the dependency graph a DAG: ports -> core, events -> core,
// sessioncore -> ports + core + events).
type Controller interface {
	SendPlaybackStartNotification(ctx context.Context, dto core.SessionDto) error
	SendPlaybackStoppedNotification(ctx context.Context, dto core.SessionDto) error
	SendSessionEndedNotification(ctx context.Context, dto core.SessionDto) error
	SendServerShutdownNotification(ctx context.Context) error
	SendServerRestartNotification(ctx context.Context) error
	SendRestartRequiredNotification(ctx context.Context) error
}
