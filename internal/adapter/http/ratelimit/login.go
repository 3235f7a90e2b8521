// Package ratelimit slows down credential guessing against the token
// endpoint.
package ratelimit

import (
	"sync"
	"time"
)

type clientWindow struct {
	count        int
	lastSeen     time.Time
	blockedUntil time.Time
}

// LoginRateLimiter allows maxAttempts per window and then blocks the client
// for blockDuration. Idle clients are forgotten by a background sweeper.
type LoginRateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientWindow
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewLoginRateLimiter(maxAttempts int, window, block time.Duration) *LoginRateLimiter {
	r := &LoginRateLimiter{
		clients:     make(map[string]*clientWindow),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go r.sweepLoop(time.Minute)
	return r
}

// Check counts an attempt and reports whether it may proceed. When it may
// not, the second value is how long the client stays blocked.
func (r *LoginRateLimiter) Check(clientID string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.clients[clientID]
	if !ok {
		w = &clientWindow{lastSeen: now}
		r.clients[clientID] = w
	}
	if remaining := w.blockedUntil.Sub(now); remaining > 0 {
		return false, remaining
	}
	if now.Sub(w.lastSeen) > r.window {
		w.count = 0
	}
	w.count++
	w.lastSeen = now

	if w.count > r.maxAttempts {
		w.blockedUntil = now.Add(r.block)
		return false, r.block
	}
	return true, 0
}

// Reset forgets a client, typically after a successful login.
func (r *LoginRateLimiter) Reset(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

func (r *LoginRateLimiter) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *LoginRateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(r.now())
		}
	}
}

// sweep drops clients idle for two windows whose block has expired.
func (r *LoginRateLimiter) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, w := range r.clients {
		if now.Sub(w.lastSeen) > 2*r.window && !now.Before(w.blockedUntil) {
			delete(r.clients, id)
		}
	}
}

func (r *LoginRateLimiter) tracked(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[clientID]
	return ok
}

// LoginAttemptTracker counts consecutive failures per client. The count feeds
// the delay applied before answering a failed login.
type LoginAttemptTracker struct {
	mu       sync.Mutex
	failures map[string]int
}

func NewLoginAttemptTracker() *LoginAttemptTracker {
	return &LoginAttemptTracker{failures: make(map[string]int)}
}

func (t *LoginAttemptTracker) GetFailedAttempts(clientID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[clientID]
}

// RecordFailure returns the new consecutive failure count.
func (t *LoginAttemptTracker) RecordFailure(clientID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[clientID]++
	return t.failures[clientID]
}

func (t *LoginAttemptTracker) RecordSuccess(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, clientID)
}
