// Package throttle rate-limits login attempts so the bot does not trip
// the platform's anti-abuse heuristic by re-authenticating too often.
package throttle

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultWindow is the rolling window the heuristic counts attempts in.
	DefaultWindow = time.Minute
	// DefaultThreshold is the attempt count within the window that
	// triggers a forced wait.
	DefaultThreshold = 5
	// DefaultRetention bounds how long attempts are remembered at all.
	DefaultRetention = 24 * time.Hour
)

type Options struct {
	Window    time.Duration
	Threshold int
	Retention time.Duration

	// Now is overridable for tests.
	Now func() time.Time

	// OnChange is called with a copy of the attempt history after every
	// new attempt, so the caller can persist it.
	OnChange func(attempts []time.Time)
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Throttle tracks timestamped login attempts, ascending by time.
type Throttle struct {
	opts Options

	mu       sync.Mutex
	attempts []time.Time
}

func New(opts Options) *Throttle {
	return &Throttle{opts: opts.withDefaults()}
}

// SetAttempts replaces the history, used to restore persisted state.
func (t *Throttle) SetAttempts(attempts []time.Time) {
	cp := append([]time.Time(nil), attempts...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Before(cp[j]) })

	t.mu.Lock()
	t.attempts = cp
	t.mu.Unlock()
}

// NewAttempt prunes attempts older than the retention window, records
// "now", and hands the updated history to OnChange for persistence.
func (t *Throttle) NewAttempt() {
	now := t.opts.Now()

	t.mu.Lock()
	t.pruneLocked(now)
	t.attempts = append(t.attempts, now)
	cp := append([]time.Time(nil), t.attempts...)
	t.mu.Unlock()

	if t.opts.OnChange != nil {
		t.opts.OnChange(cp)
	}
}

// Wait returns how long to wait before the next attempt is safe, or 0.
// It counts attempts inside the rolling window; once the count reaches
// the threshold, the wait is the time until the oldest of those
// attempts leaves the window.
func (t *Throttle) Wait() time.Duration {
	now := t.opts.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.opts.Window)
	var oldest time.Time
	count := 0
	for _, ts := range t.attempts {
		if ts.After(cutoff) {
			if count == 0 {
				oldest = ts
			}
			count++
		}
	}
	if count < t.opts.Threshold {
		return 0
	}
	return t.opts.Window - now.Sub(oldest)
}

// Attempts returns a copy of the current history.
func (t *Throttle) Attempts() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.attempts...)
}

func (t *Throttle) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.opts.Retention)
	i := 0
	for i < len(t.attempts) && !t.attempts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.attempts = append(t.attempts[:0], t.attempts[i:]...)
	}
}
