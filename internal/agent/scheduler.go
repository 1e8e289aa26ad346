package agent

import (
	"sync"
	"time"
)

// Scheduler arms repeating timers. Every fire re-arms from the moment it
// fires, so host jitter never accumulates into the schedule.
type Scheduler interface {
	Every(d time.Duration, fn func()) (cancel func())
}

type ClockScheduler struct{}

func (ClockScheduler) Every(d time.Duration, fn func()) func() {
	var (
		mu      sync.Mutex
		stopped bool
		timer   *time.Timer
		fire    func()
	)
	fire = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		timer = time.AfterFunc(d, fire)
		mu.Unlock()
		fn()
	}

	mu.Lock()
	timer = time.AfterFunc(d, fire)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		timer.Stop()
	}
}
