// Package schedule owns the single proactive-renewal timer. Exactly one timer
// is armed per scheduler at any time: every Arm first cancels the previous
// timer, and Disarm is idempotent.
package schedule

import (
	"sync"
	"time"

	"github.com/vantagecms/authkit/token"
)

// Scheduler arms a one-shot timer that fires shortly before the access token
// expires.
type Scheduler struct {
	codec    token.Codec
	skew     time.Duration
	floor    time.Duration
	fallback time.Duration
	now      func() time.Time

	mu    sync.Mutex
	timer *time.Timer
}

// New returns a scheduler computing fire times as max(expiry-skew, now+floor).
// When the codec cannot read an expiry, fallback is used instead of firing
// immediately; that keeps a malformed or foreign token from causing a refresh
// storm.
func New(codec token.Codec, skew, floor, fallback time.Duration) *Scheduler {
	return &Scheduler{
		codec:    codec,
		skew:     skew,
		floor:    floor,
		fallback: fallback,
		now:      time.Now,
	}
}

// delayFor computes the timer delay for the given access token.
func (s *Scheduler) delayFor(accessToken string) time.Duration {
	expiry, ok := s.codec.ExpiryOf(accessToken)
	if !ok {
		return s.fallback
	}
	delay := expiry.Sub(s.now()) - s.skew
	if delay < s.floor {
		return s.floor
	}
	return delay
}

// Arm cancels any pending timer and schedules onDue to fire when the token is
// due for renewal. onDue runs on its own goroutine.
func (s *Scheduler) Arm(accessToken string, onDue func()) {
	delay := s.delayFor(accessToken)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, onDue)
}

// Disarm cancels the pending timer, if any. Idempotent.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
