package pbdd

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// WebsocketTokens is the rate limit key for tokens read from /ws/commands.
const WebsocketTokens = "ws/commands"

// RateLimit is a token bucket setting.
type RateLimit struct {
	// PerSecond is the sustained rate.
	PerSecond float64

	// Burst is the number of requests allowed at once.
	Burst int
}

// DefaultRateLimits guard the command path against a runaway recognizer
// flooding the queue. Status reads are effectively unlimited.
var DefaultRateLimits = map[string]RateLimit{
	MethodSendCommand:    {PerSecond: 20, Burst: 40},
	MethodSwitchAction:   {PerSecond: 10, Burst: 20},
	WebsocketTokens:      {PerSecond: 20, Burst: 40},
	MethodStreamOutcomes: {PerSecond: 5, Burst: 10},
	MethodGetStatus:      {PerSecond: 500, Burst: 500},
	MethodListEvents:     {PerSecond: 50, Burst: 100},
	MethodPing:           {PerSecond: 500, Burst: 500},
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	rate       float64
	lastUpdate time.Time
	denied     int64
}

func newTokenBucket(limit RateLimit) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(limit.Burst),
		max:        float64(limit.Burst),
		rate:       limit.PerSecond,
		lastUpdate: time.Now(),
	}
}

func (tb *tokenBucket) allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens += now.Sub(tb.lastUpdate).Seconds() * tb.rate
	if tb.tokens > tb.max {
		tb.tokens = tb.max
	}
	tb.lastUpdate = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	tb.denied++
	return false
}

// RateLimiter applies per-key token buckets.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]RateLimit
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewRateLimiter creates a limiter from DefaultRateLimits overridden by
// limits. A zero Burst disables limiting for that key.
func NewRateLimiter(limits map[string]RateLimit) *RateLimiter {
	rl := &RateLimiter{
		limits:  make(map[string]RateLimit, len(DefaultRateLimits)),
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
	for key, limit := range DefaultRateLimits {
		rl.limits[key] = limit
	}
	for key, limit := range limits {
		rl.limits[key] = limit
	}
	return rl
}

// Allow reports whether a request for key may proceed. Keys without a limit
// are always allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	bucket, ok := rl.buckets[key]
	if !ok {
		limit, configured := rl.limits[key]
		if !configured || limit.Burst <= 0 {
			rl.mu.Unlock()
			return true
		}
		bucket = newTokenBucket(limit)
		rl.buckets[key] = bucket
	}
	now := rl.now()
	rl.mu.Unlock()

	return bucket.allow(now)
}

// Denied returns how many requests for key were refused.
func (rl *RateLimiter) Denied(key string) int64 {
	rl.mu.Lock()
	bucket, ok := rl.buckets[key]
	rl.mu.Unlock()
	if !ok {
		return 0
	}
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.denied
}

// UnaryServerInterceptor rejects unary calls over their limit.
func (rl *RateLimiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !rl.Allow(info.FullMethod) {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor limits how often streams are opened.
func (rl *RateLimiter) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !rl.Allow(info.FullMethod) {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}
		return handler(srv, ss)
	}
}
