package dispatch

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per user.
type limiterPool struct {
	mu    sync.Mutex
	m     map[uint]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		m:     make(map[uint]*limiterEntry),
		rps:   rps,
		burst: burst,
		ttl:   10 * time.Minute,
	}
}

func (p *limiterPool) Allow(userId uint) bool {
	if p.rps <= 0 {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for k, e := range p.m {
		if now.Sub(e.lastSeen) > p.ttl {
			delete(p.m, k)
		}
	}

	e, ok := p.m[userId]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[userId] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}
