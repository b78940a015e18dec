package sessionlist

import (
	"sync"
	"time"
)

// Scheduler produces the ticks that drive periodic refreshes.
type Scheduler interface {
	C() <-chan time.Time
	Stop()
}

// TickerScheduler ticks at a fixed interval.
type TickerScheduler struct {
	ticker *time.Ticker
}

var _ Scheduler = &TickerScheduler{}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &TickerScheduler{ticker: time.NewTicker(interval)}
}

func (s *TickerScheduler) C() <-chan time.Time { return s.ticker.C }
func (s *TickerScheduler) Stop()               { s.ticker.Stop() }

// ManualScheduler only ticks when Tick is called. Used in tests.
type ManualScheduler struct {
	ch   chan time.Time
	once sync.Once
	done chan struct{}
}

var _ Scheduler = &ManualScheduler{}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ch: make(chan time.Time), done: make(chan struct{})}
}

func (s *ManualScheduler) C() <-chan time.Time { return s.ch }

func (s *ManualScheduler) Stop() { s.once.Do(func() { close(s.done) }) }

// Tick blocks until the refresher has received the tick or the scheduler
// is stopped.
func (s *ManualScheduler) Tick() {
	select {
	case s.ch <- time.Now():
	case <-s.done:
	}
}
