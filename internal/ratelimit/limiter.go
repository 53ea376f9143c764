// Package ratelimit provides per-connection sliding-window rate limiting over
// received frames. Each connection owns one Limiter holding the timestamps of
// its recent frames; entries older than the window are dropped before every
// admission check.
package ratelimit

import "time"

// Rule defines a rate limiting policy: the maximum number of frames allowed
// inside the window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Limiter is the sliding-window state for a single connection. It is not
// goroutine-safe; callers serialize access (the registry holds one limiter
// per connection under its lock).
type Limiter struct {
	rule   Rule
	stamps []time.Time
}

// New creates a Limiter for the given rule.
func New(rule Rule) *Limiter {
	return &Limiter{rule: rule}
}

// Allow reports whether a frame arriving at now is admitted. Admitted frames
// are recorded; refused frames leave the window untouched so a refused frame
// does not extend the client's penalty.
func (l *Limiter) Allow(now time.Time) bool {
	cutoff := now.Add(-l.rule.Window)
	i := 0
	for i < len(l.stamps) && l.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}

	if len(l.stamps) >= l.rule.Limit {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

// Pending returns the number of frames currently inside the window.
func (l *Limiter) Pending(now time.Time) int {
	cutoff := now.Add(-l.rule.Window)
	n := 0
	for _, ts := range l.stamps {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}
