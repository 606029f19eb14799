/*
runner.go - periodic cycle driver

PURPOSE:
  Runs Cycle on a fixed interval in a background goroutine and keeps the
  latest Result for the HTTP layer to serve. The first cycle fires
  immediately on Start so a fresh process has data before the first tick.

USAGE:
  runner := engine.NewRunner(eng, 5*time.Minute)
  runner.Start()
  // ... later
  runner.Stop()

SEE ALSO:
  - api/server.go: serves Latest and triggers RunNow
*/
package engine

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner drives cycles on an interval.
type Runner struct {
	Engine   *Engine
	Interval time.Duration

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// resMu guards the latest outcome separately so Stop can hold mu
	// while an in-flight cycle records its result
	resMu     sync.Mutex
	latest    *Result
	latestErr error
}

// NewRunner creates a runner; it does not start it.
func NewRunner(eng *Engine, interval time.Duration) *Runner {
	return &Runner{
		Engine:   eng,
		Interval: interval,
		stop:     make(chan bool),
	}
}

// Start begins the background loop and runs one cycle immediately.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticker = time.NewTicker(r.Interval)
	r.wg.Add(1)

	go r.run()

	log.Printf("[Runner] Started with cycle interval: %v", r.Interval)
}

// Stop stops the background loop and waits for the in-flight cycle.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
		close(r.stop)
		r.wg.Wait()
		log.Println("[Runner] Stopped")
	}
}

func (r *Runner) run() {
	defer r.wg.Done()

	// Run immediately on start
	r.RunNow()

	for {
		select {
		case <-r.ticker.C:
			r.RunNow()
		case <-r.stop:
			return
		}
	}
}

// RunNow executes one cycle and records its outcome.
func (r *Runner) RunNow() *Result {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := r.Engine.Cycle(ctx, time.Now())
	if err != nil {
		log.Printf("[Runner] cycle failed: %v", err)
	}

	r.resMu.Lock()
	if res != nil {
		r.latest = res
	}
	r.latestErr = err
	r.resMu.Unlock()
	return res
}

// Latest returns the most recent result and the last cycle error.
// Both may be set: an error after a success leaves the stale result
// available.
func (r *Runner) Latest() (*Result, error) {
	r.resMu.Lock()
	defer r.resMu.Unlock()
	return r.latest, r.latestErr
}
