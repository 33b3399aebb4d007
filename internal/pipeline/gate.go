package pipeline

import (
	"context"
	"sync"
	"time"
)

// errorGate pauses dispatch after a run of consecutive Error results so a
// failing upstream isn't hammered. Workers record every terminal result
// and wait on the gate before dispatching the next item; when the
// threshold is hit the gate arms a cool-down that every worker observes.
type errorGate struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	consecutive int
	resumeAt    time.Time

	// onPause is notified once per armed cool-down.
	onPause func(d time.Duration)

	now func() time.Time
}

// newErrorGate creates a gate. A threshold below 1 disables it.
func newErrorGate(threshold int, cooldown time.Duration, onPause func(time.Duration)) *errorGate {
	return &errorGate{
		threshold: threshold,
		cooldown:  cooldown,
		onPause:   onPause,
		now:       time.Now,
	}
}

// Record tallies a terminal result. The caller's next Wait blocks for the
// cool-down once threshold consecutive errors have been seen.
func (g *errorGate) Record(status Status) {
	if g == nil || g.threshold < 1 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if status != StatusError {
		g.consecutive = 0
		return
	}
	g.consecutive++
	if g.consecutive >= g.threshold {
		g.consecutive = 0
		g.resumeAt = g.now().Add(g.cooldown)
		if g.onPause != nil {
			g.onPause(g.cooldown)
		}
	}
}

// Wait blocks until any armed cool-down has elapsed.
func (g *errorGate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	wait := g.resumeAt.Sub(g.now())
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
