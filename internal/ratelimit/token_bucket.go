// Package ratelimit throttles backend traffic with token buckets.
//
// The assistant holds one Limiter in front of its backend so that cache
// misses cannot exceed the configured request rate. The HTTP server keeps a
// Store with one Limiter per client address.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most rate requests per second on average, with bursts
// of up to burst requests after an idle period.
type Limiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// New returns a Limiter using the wall clock. A burst <= 0 means the burst
// equals the rate. The burst is never below one request.
func New(rate, burst float64) *Limiter {
	return NewWithClock(rate, burst, time.Now)
}

// NewWithClock is New with an injected time source.
func NewWithClock(rate, burst float64, now func() time.Time) *Limiter {
	if burst <= 0 {
		burst = rate
	}
	burst = max(burst, 1)
	return &Limiter{
		rate:   rate,
		burst:  burst,
		now:    now,
		tokens: burst,
		last:   now(),
	}
}

// Allow reports whether one more request may go to the backend now and,
// if so, charges it against the bucket.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(l.now())
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// refill credits the tokens earned since the last call. l.mu must be held.
func (l *Limiter) refill(t time.Time) {
	if elapsed := t.Sub(l.last); elapsed > 0 {
		l.tokens = min(l.burst, l.tokens+elapsed.Seconds()*l.rate)
	}
	l.last = t
}

// Store hands out one Limiter per client key, all sharing the same rate
// and burst.
type Store struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*Limiter
}

// NewStore returns an empty Store.
func NewStore(rate, burst float64) *Store {
	return &Store{
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*Limiter),
	}
}

// Allow reports whether client may make another request, creating its
// limiter on first sight.
func (s *Store) Allow(client string) bool {
	return s.limiter(client).Allow()
}

func (s *Store) limiter(client string) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.clients[client]
	if !ok {
		l = NewWithClock(s.rate, s.burst, s.now)
		s.clients[client] = l
	}
	return l
}

// Len returns the number of clients seen so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
