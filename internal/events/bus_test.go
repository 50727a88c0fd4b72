package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediahub.app/sessioncore/internal/core"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var received []core.EventKind
	bus.Subscribe(func(evt core.Event) {
		mu.Lock()
		received = append(received, evt.Kind)
		mu.Unlock()
	})

	bus.Publish(core.Event{Kind: core.EventSessionStarted})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != core.EventSessionStarted {
		t.Fatalf("expected one SessionStarted event, got %v", received)
	}
}

func TestBus_PublishSurvivesPanickingListener(t *testing.T) {
	bus := NewBus(nil)
	var called bool
	var mu sync.Mutex

	bus.Subscribe(func(core.Event) { panic("boom") })
	bus.Subscribe(func(core.Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	})

	bus.Publish(core.Event{Kind: core.EventSessionEnded})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		ok := called
		mu.Unlock()
		if ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Fatalf("expected the second listener to still run after the first panicked")
	}
}

func TestBus_PublishPreservesOrderAcrossCalls(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var received []core.EventKind
	bus.Subscribe(func(evt core.Event) {
		mu.Lock()
		received = append(received, evt.Kind)
		mu.Unlock()
	})

	// Two separate Publish calls from the same goroutine, as
	// LogSessionActivity issues SessionStarted then later SessionActivity
	// for the same session — the listener must see them in that order.
	bus.Publish(core.Event{Kind: core.EventSessionStarted})
	bus.Publish(core.Event{Kind: core.EventSessionActivity})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != core.EventSessionStarted || received[1] != core.EventSessionActivity {
		t.Fatalf("expected [SessionStarted, SessionActivity] in order, got %v", received)
	}
}

type fanoutController struct {
	mu               sync.Mutex
	stoppedCalls     int
	startErr         error
	sessionEndedErr  error
}

func (c *fanoutController) SendPlaybackStartNotification(context.Context, core.SessionDto) error {
	return c.startErr
}
func (c *fanoutController) SendPlaybackStoppedNotification(context.Context, core.SessionDto) error {
	c.mu.Lock()
	c.stoppedCalls++
	c.mu.Unlock()
	return nil
}
func (c *fanoutController) SendSessionEndedNotification(context.Context, core.SessionDto) error {
	return c.sessionEndedErr
}
func (c *fanoutController) SendServerShutdownNotification(context.Context) error  { return nil }
func (c *fanoutController) SendServerRestartNotification(context.Context) error  { return nil }
func (c *fanoutController) SendRestartRequiredNotification(context.Context) error { return nil }

func TestFanout_DeliversToEveryTargetAndSwallowsErrors(t *testing.T) {
	bus := NewBus(nil)
	ok := &fanoutController{}
	failing := &fanoutController{startErr: core.NewInvalidArgument("nope")}

	bus.Fanout(context.Background(), core.NotificationPlaybackStopped, []Target{
		{SessionID: "s1", Controller: ok},
		{SessionID: "s2", Controller: failing},
	})

	if ok.stoppedCalls != 1 {
		t.Fatalf("expected target 1 to receive the stopped notification, got %d calls", ok.stoppedCalls)
	}

	// Fanout must not panic or block even when one target errors: the
	// failing controller returns startErr for PlaybackStart.
	bus.Fanout(context.Background(), core.NotificationPlaybackStart, []Target{
		{SessionID: "s2", Controller: failing},
	})
}

func TestFanout_UnknownKindIsANoOp(t *testing.T) {
	bus := NewBus(nil)
	ctrl := &fanoutController{}
	bus.Fanout(context.Background(), core.NotificationKind("Bogus"), []Target{{SessionID: "s1", Controller: ctrl}})
	if ctrl.stoppedCalls != 0 {
		t.Fatalf("expected no notification method to be invoked for an unknown kind")
	}
}
