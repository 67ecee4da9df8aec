package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether an authenticated caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// Limits configures an InProcessLimiter in requests per minute. Tiers
// override DefaultRPM for identities in that service tier. Zero means
// unlimited.
type Limits struct {
	DefaultRPM int
	Tiers      map[string]int
}

func (l Limits) rpm(tier string) int {
	if rpm, ok := l.Tiers[tier]; ok {
		return rpm
	}
	return l.DefaultRPM
}

// idleBucketTTL is how long a bucket survives without traffic. A full
// bucket after this long is indistinguishable from a fresh one.
const idleBucketTTL = 10 * time.Minute

// InProcessLimiter keeps one token bucket per subject and tier. Buckets
// refill at the tier's rate and hold one minute's worth of requests.
type InProcessLimiter struct {
	limits Limits
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewInProcessLimiter creates a limiter for limits.
func NewInProcessLimiter(limits Limits) *InProcessLimiter {
	return &InProcessLimiter{
		limits:  limits,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow returns ErrTooManyRequests when the caller's bucket is empty.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.Tier()
	rpm := l.limits.rpm(tier)
	if rpm <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	key := identity.Subject + "|" + tier
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if !b.lim.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}

// prune drops idle buckets at most once per TTL. Must be called with
// l.mu held.
func (l *InProcessLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < idleBucketTTL {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleBucketTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *InProcessLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
