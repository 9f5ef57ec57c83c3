package admission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/24sk/anime/internal/domain/entity"
)

// DailyStampLimit caps generated stickers per session per UTC day.
const DailyStampLimit = 40

// ErrConflict is returned by QuotaStore.Create when another writer inserted
// the row first. The loser re-reads and falls through to the update path.
var ErrConflict = errors.New("quota row already exists")

// QuotaStore is the record store for daily counters, keyed by
// (session id, UTC date). Get returns (nil, nil) when no row exists.
type QuotaStore interface {
	Get(ctx context.Context, sessionID, date string) (*entity.DailyQuotaCounter, error)
	Create(ctx context.Context, row *entity.DailyQuotaCounter) error
	Update(ctx context.Context, row *entity.DailyQuotaCounter) error
}

// QuotaChecker admits batches against the daily per-session limit. A request
// for N items consumes N slots atomically or none at all.
type QuotaChecker struct {
	store QuotaStore
	log   *zap.Logger
	now   func() time.Time
}

func NewQuotaChecker(store QuotaStore, log *zap.Logger) *QuotaChecker {
	return &QuotaChecker{store: store, log: log, now: time.Now}
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Check admits increment slots for the session on the current UTC day.
// A non-positive increment is a no-op that always allows.
func (q *QuotaChecker) Check(ctx context.Context, sessionID string, increment int) Decision {
	now := q.now()
	failOpen := Decision{Allowed: true, Remaining: DailyStampLimit}

	if increment <= 0 {
		return Decision{Allowed: true, Remaining: DailyStampLimit}
	}

	today := utcDate(now)
	row, err := q.store.Get(ctx, sessionID, today)
	if err != nil {
		q.log.Error("daily quota lookup failed, allowing request", zap.Error(err))
		return failOpen
	}

	if row == nil {
		if increment > DailyStampLimit {
			return Decision{Allowed: false, Remaining: 0}
		}
		created := &entity.DailyQuotaCounter{
			AnonSessionID:   sessionID,
			Date:            today,
			GeneratedCount:  increment,
			LastGeneratedAt: now,
		}
		err := q.store.Create(ctx, created)
		if err == nil {
			return Decision{Allowed: true, Remaining: DailyStampLimit - increment}
		}
		if !errors.Is(err, ErrConflict) {
			q.log.Error("daily quota insert failed, allowing request", zap.Error(err))
			return failOpen
		}
		// Lost the first-writer race: re-read and fall through to the update
		// path. A second conflict is not retried (known soft limit).
		row, err = q.store.Get(ctx, sessionID, today)
		if err != nil || row == nil {
			q.log.Error("daily quota re-read after conflict failed, allowing request", zap.Error(err))
			return failOpen
		}
	}

	newCount := row.GeneratedCount + increment
	if newCount > DailyStampLimit {
		remaining := DailyStampLimit - row.GeneratedCount
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: false, Remaining: remaining}
	}

	row.GeneratedCount = newCount
	row.LastGeneratedAt = now
	if err := q.store.Update(ctx, row); err != nil {
		q.log.Error("daily quota update failed, allowing request", zap.Error(err))
		return failOpen
	}
	return Decision{Allowed: true, Remaining: DailyStampLimit - newCount}
}
