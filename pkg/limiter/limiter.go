// Package limiter hands out one token bucket per client key.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// Pool keeps a rate.Limiter per key. Idle entries are dropped by Sweep.
type Pool struct {
	mu    sync.Mutex
	m     map[string]*entry
	rps   rate.Limit
	burst int
	now   func() time.Time
}

type entry struct {
	l    *rate.Limiter
	seen time.Time
}

// New returns a pool issuing limiters of rps tokens per second with the given
// burst. Non-positive values fall back to 5 rps and a burst of 10.
func New(rps float64, burst int) *Pool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Pool{
		m:     make(map[string]*entry),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

func (p *Pool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.seen = p.now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &entry{l: l, seen: p.now()}
	return l
}

// Allow reports whether key may make a request now. A nil pool allows all.
func (p *Pool) Allow(key string) bool {
	if p == nil {
		return true
	}
	return p.get(key).AllowN(p.now(), 1)
}

// Sweep forgets keys not seen within idle and returns how many were removed.
func (p *Pool) Sweep(idle time.Duration) int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-idle)
	n := 0
	for k, e := range p.m {
		if e.seen.Before(cutoff) {
			delete(p.m, k)
			n++
		}
	}
	return n
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
