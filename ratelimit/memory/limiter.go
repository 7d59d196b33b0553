// Package memorylimiter provides a single-process sliding-window rate
// limiter. It backs deployments that run without Redis; counts are lost
// on restart and are not shared across replicas.
package memorylimiter

import (
	"fmt"
	"sync"
	"time"
)

// Limit caps a bucket at Max calls per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits covers the buckets the API throttles. The userinfo
// pass-through is the expensive one since every call hits the realm.
var DefaultLimits = map[string]Limit{
	"userinfo": {Max: 10, Window: time.Minute},
	"writes":   {Max: 60, Window: time.Minute},
	"default":  {Max: 120, Window: time.Minute},
}

// Limiter tracks call timestamps per bucket:key pair under one mutex.
type Limiter struct {
	mu     sync.Mutex
	limits map[string]Limit
	hits   map[string][]time.Time
	now    func() time.Time
}

// New builds a limiter. A nil limits map falls back to DefaultLimits.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{
		limits: limits,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if lim, ok := l.limits[bucket]; ok {
		return lim
	}
	if lim, ok := l.limits["default"]; ok {
		return lim
	}
	return Limit{Max: 120, Window: time.Minute}
}

// AllowNamed reports whether one more call in the named bucket is within
// the limit for key. A denied call is not recorded, so refusals do not
// extend the penalty.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("rate limit requires bucket and key")
	}

	lim := l.limitFor(bucket)
	now := l.now()
	cutoff := now.Add(-lim.Window)
	entry := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.hits[entry][:0]
	for _, t := range l.hits[entry] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= lim.Max {
		l.hits[entry] = kept
		return false, nil
	}

	l.hits[entry] = append(kept, now)
	return true, nil
}
