// Package reaper removes abandoned sessions on a periodic sweep.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/tablekeep/internal/services/continuity/presence"
	"github.com/louisbranch/tablekeep/internal/services/continuity/registry"
)

const (
	// DefaultSweepInterval is how often the reaper scans for due sessions.
	DefaultSweepInterval = 5 * time.Second
	// DefaultCleanupTimeout is how long a started session survives with
	// every human absent before it is torn down. Zero makes cleanup due
	// immediately, which deterministic tests rely on.
	DefaultCleanupTimeout = 30 * time.Second
)

// Reaper sweeps all known sessions and tears down the ones whose
// cleanup timeout has elapsed.
type Reaper struct {
	sessions *registry.SessionRegistry
	monitor  *presence.Monitor
	interval time.Duration
	timeout  time.Duration
}

// New creates a reaper. Non-positive interval or timeout fall back to
// the defaults.
func New(sessions *registry.SessionRegistry, monitor *presence.Monitor, interval, timeout time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if timeout < 0 {
		timeout = DefaultCleanupTimeout
	}
	return &Reaper{
		sessions: sessions,
		monitor:  monitor,
		interval: interval,
		timeout:  timeout,
	}
}

// Run sweeps until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep inspects every known session once and reaps the due ones. It
// returns the number of sessions removed. Failures are isolated per
// session: one faulty session never stops the sweep for the rest.
func (r *Reaper) Sweep(ctx context.Context) int {
	reaped := 0
	for _, sessionID := range r.sessions.SessionIDs() {
		if r.reapOne(ctx, sessionID) {
			reaped++
		}
	}
	return reaped
}

func (r *Reaper) reapOne(ctx context.Context, sessionID string) (reaped bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("reaper sweep panic session=%s panic=%v", sessionID, recovered)
			reaped = false
		}
	}()

	reaped, err := r.monitor.ReapIfDue(ctx, sessionID, r.timeout)
	if err != nil {
		log.Printf("reaper sweep failed session=%s error=%v", sessionID, err)
		return false
	}
	return reaped
}
