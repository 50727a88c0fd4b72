package ports

import (
	"sync"
	"time"
)

// TimerFactory is the injected collaborator behind the auto-progress timer
// and is swapped for a deterministic fake under test.
type TimerFactory interface {
	// StartRepeating invokes fn every interval until the returned stop
	// func is called. stop is idempotent and safe to call from any
	// goroutine.
	StartRepeating(interval time.Duration, fn func()) (stop func())
}

type realTimerFactory struct{}

// NewRealTimerFactory returns the production TimerFactory backed by
// time.NewTicker.
func NewRealTimerFactory() TimerFactory { return realTimerFactory{} }

func (realTimerFactory) StartRepeating(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
