// Package admission gates requests before they reach the paid generation API.
// Both checks are fail-open: on storage error the request is allowed and the
// error logged, trading strict enforcement for availability.
package admission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/24sk/anime/internal/domain/entity"
)

const (
	// RateLimitWindow is the sliding window for the per-client counter.
	RateLimitWindow = 24 * time.Hour
	// RateLimitMaxRequests is the per-client cap within one window.
	RateLimitMaxRequests = 200
)

// Decision is the outcome of an admission check, with enough detail for the
// standard X-RateLimit response headers.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimitStore is the record store for per-client counters. Get returns
// (nil, nil) when no row exists.
type RateLimitStore interface {
	Get(ctx context.Context, ipHash string) (*entity.RateLimitCounter, error)
	Create(ctx context.Context, row *entity.RateLimitCounter) error
	Update(ctx context.Context, row *entity.RateLimitCounter) error
}

// RateLimiter implements the per-client sliding counter.
type RateLimiter struct {
	store RateLimitStore
	log   *zap.Logger
	now   func() time.Time
}

func NewRateLimiter(store RateLimitStore, log *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, log: log, now: time.Now}
}

// HashClientID derives the stable persisted key from a raw client address.
func HashClientID(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}

// Check evaluates one request from the hashed client identity.
func (l *RateLimiter) Check(ctx context.Context, ipHash string) Decision {
	now := l.now()
	failOpen := Decision{Allowed: true, Remaining: RateLimitMaxRequests, ResetAt: now.Add(RateLimitWindow)}

	row, err := l.store.Get(ctx, ipHash)
	if err != nil {
		l.log.Error("rate limit lookup failed, allowing request", zap.Error(err))
		return failOpen
	}

	if row == nil {
		row = &entity.RateLimitCounter{IPHash: ipHash, RequestCount: 1, LastRequestAt: now}
		if err := l.store.Create(ctx, row); err != nil {
			l.log.Error("rate limit insert failed, allowing request", zap.Error(err))
			return failOpen
		}
		return Decision{Allowed: true, Remaining: RateLimitMaxRequests - 1, ResetAt: now.Add(RateLimitWindow)}
	}

	if now.Sub(row.LastRequestAt) >= RateLimitWindow {
		row.RequestCount = 1
		row.LastRequestAt = now
		if err := l.store.Update(ctx, row); err != nil {
			l.log.Error("rate limit reset failed, allowing request", zap.Error(err))
			return failOpen
		}
		return Decision{Allowed: true, Remaining: RateLimitMaxRequests - 1, ResetAt: now.Add(RateLimitWindow)}
	}

	resetAt := row.LastRequestAt.Add(RateLimitWindow)
	if row.RequestCount >= RateLimitMaxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	row.RequestCount++
	row.LastRequestAt = now
	if err := l.store.Update(ctx, row); err != nil {
		l.log.Error("rate limit update failed, allowing request", zap.Error(err))
		return failOpen
	}
	return Decision{Allowed: true, Remaining: RateLimitMaxRequests - row.RequestCount, ResetAt: resetAt}
}
