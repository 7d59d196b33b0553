// Package redislimiter provides a Redis-backed sliding-window rate
// limiter shared across API replicas. Each bucket:key pair is a sorted
// set of call timestamps trimmed on every check.
package redislimiter

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit caps a bucket at Max calls per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits mirrors the in-memory limiter's buckets.
var DefaultLimits = map[string]Limit{
	"userinfo": {Max: 10, Window: time.Minute},
	"writes":   {Max: 60, Window: time.Minute},
	"default":  {Max: 120, Window: time.Minute},
}

const keyPrefix = "workplan:rl:"

// Limiter throttles named buckets against a shared Redis instance.
type Limiter struct {
	rdb    *redis.Client
	limits map[string]Limit
	seq    atomic.Uint64
}

// member builds a unique sorted-set member for one call. The score alone
// carries the time; the sequence suffix keeps two calls landing in the
// same millisecond from collapsing into one member.
func (l *Limiter) member(nowMs int64) string {
	return strconv.FormatInt(nowMs, 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)
}

// New builds a limiter. A nil limits map falls back to DefaultLimits.
func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{rdb: rdb, limits: limits}
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
// the limit for key. The call is recorded optimistically and removed
// again when it lands over the limit, so refusals do not extend the
// penalty. Redis failures surface as errors; the caller decides whether
// to fail open.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("rate limit requires bucket and key")
	}

	lim := l.limitFor(bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	nowMs := time.Now().UnixMilli()
	cutoff := nowMs - lim.Window.Milliseconds()
	zkey := keyPrefix + bucket + ":" + key
	mem := l.member(nowMs)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(nowMs), Member: mem})
	countCmd := pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(lim.Max) {
		l.rdb.ZRem(ctx, zkey, mem)
		return false, nil
	}
	return true, nil
}
