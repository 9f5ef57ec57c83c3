package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/24sk/anime/internal/domain/entity"
)

type mockQuotaStore struct {
	rows      map[string]*entity.DailyQuotaCounter
	getErr    error
	createErr error
	updateErr error

	creates int
	updates int
}

func newMockQuotaStore() *mockQuotaStore {
	return &mockQuotaStore{rows: make(map[string]*entity.DailyQuotaCounter)}
}

func (m *mockQuotaStore) key(sessionID, date string) string { return sessionID + "|" + date }

func (m *mockQuotaStore) Get(_ context.Context, sessionID, date string) (*entity.DailyQuotaCounter, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[m.key(sessionID, date)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *mockQuotaStore) Create(_ context.Context, row *entity.DailyQuotaCounter) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	k := m.key(row.AnonSessionID, row.Date)
	if _, exists := m.rows[k]; exists {
		return ErrConflict
	}
	cp := *row
	m.rows[k] = &cp
	return nil
}

func (m *mockQuotaStore) Update(_ context.Context, row *entity.DailyQuotaCounter) error {
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *row
	m.rows[m.key(row.AnonSessionID, row.Date)] = &cp
	return nil
}

func newTestQuota(store QuotaStore, now time.Time) *QuotaChecker {
	q := NewQuotaChecker(store, zap.NewNop())
	q.now = func() time.Time { return now }
	return q
}

func TestQuota_FirstBatchCreatesRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockQuotaStore()
	q := newTestQuota(store, now)

	d := q.Check(context.Background(), "session", 8)
	if !d.Allowed {
		t.Fatalf("first batch should be allowed")
	}
	if d.Remaining != DailyStampLimit-8 {
		t.Fatalf("unexpected remaining: %d", d.Remaining)
	}
	row := store.rows["session|2026-03-01"]
	if row == nil || row.GeneratedCount != 8 {
		t.Fatalf("expected persisted count 8, got %+v", row)
	}
}

func TestQuota_AllOrNothing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockQuotaStore()
	store.rows["session|2026-03-01"] = &entity.DailyQuotaCounter{
		AnonSessionID: "session", Date: "2026-03-01", GeneratedCount: 35,
	}
	q := newTestQuota(store, now)

	// 35 + 8 > 40: the whole batch is refused, nothing is consumed.
	d := q.Check(context.Background(), "session", 8)
	if d.Allowed {
		t.Fatalf("batch over the limit should be denied")
	}
	if d.Remaining != 5 {
		t.Fatalf("unexpected remaining: %d", d.Remaining)
	}
	if store.rows["session|2026-03-01"].GeneratedCount != 35 {
		t.Fatalf("denied batch must not consume slots")
	}

	// A smaller batch that fits still goes through.
	d = q.Check(context.Background(), "session", 5)
	if !d.Allowed || d.Remaining != 0 {
		t.Fatalf("fitting batch should be allowed with 0 remaining, got %+v", d)
	}
}

func TestQuota_NonPositiveIncrementIsNoop(t *testing.T) {
	store := newMockQuotaStore()
	q := newTestQuota(store, time.Now())

	d := q.Check(context.Background(), "session", 0)
	if !d.Allowed {
		t.Fatalf("zero increment should always be allowed")
	}
	if store.creates != 0 || store.updates != 0 {
		t.Fatalf("zero increment must not touch the store")
	}
}

func TestQuota_UTCDayBoundaryResets(t *testing.T) {
	store := newMockQuotaStore()
	store.rows["session|2026-03-01"] = &entity.DailyQuotaCounter{
		AnonSessionID: "session", Date: "2026-03-01", GeneratedCount: DailyStampLimit,
	}

	// 23:59 UTC on the same day: exhausted.
	q := newTestQuota(store, time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
	if d := q.Check(context.Background(), "session", 1); d.Allowed {
		t.Fatalf("exhausted quota should deny before midnight")
	}

	// 00:01 UTC the next day: a fresh row.
	q = newTestQuota(store, time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC))
	if d := q.Check(context.Background(), "session", 1); !d.Allowed {
		t.Fatalf("quota should reset at the UTC day boundary")
	}
}

func TestQuota_ConflictRetriesViaUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockQuotaStore()

	// First Get sees no row, but a concurrent writer inserts before Create.
	conflictStore := &racingQuotaStore{inner: store, now: now}
	q := newTestQuota(conflictStore, now)

	d := q.Check(context.Background(), "session", 3)
	if !d.Allowed {
		t.Fatalf("conflict loser should fall through to the update path")
	}
	row := store.rows["session|2026-03-01"]
	if row == nil || row.GeneratedCount != 5 {
		t.Fatalf("expected winner's 2 plus loser's 3, got %+v", row)
	}
}

// racingQuotaStore simulates losing the first-writer race: the first Get
// reports no row, then the winner's row appears.
type racingQuotaStore struct {
	inner *mockQuotaStore
	now   time.Time
	reads int
}

func (r *racingQuotaStore) Get(ctx context.Context, sessionID, date string) (*entity.DailyQuotaCounter, error) {
	r.reads++
	if r.reads == 1 {
		return nil, nil
	}
	return r.inner.Get(ctx, sessionID, date)
}

func (r *racingQuotaStore) Create(ctx context.Context, row *entity.DailyQuotaCounter) error {
	winner := &entity.DailyQuotaCounter{
		AnonSessionID: row.AnonSessionID, Date: row.Date, GeneratedCount: 2, LastGeneratedAt: r.now,
	}
	_ = r.inner.Create(ctx, winner)
	return ErrConflict
}

func (r *racingQuotaStore) Update(ctx context.Context, row *entity.DailyQuotaCounter) error {
	return r.inner.Update(ctx, row)
}

func TestQuota_FailsOpenOnStoreErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("db down")

	lookupErr := newMockQuotaStore()
	lookupErr.getErr = boom

	insertErr := newMockQuotaStore()
	insertErr.createErr = boom

	updateErr := newMockQuotaStore()
	updateErr.rows["session|2026-03-01"] = &entity.DailyQuotaCounter{
		AnonSessionID: "session", Date: "2026-03-01", GeneratedCount: 1,
	}
	updateErr.updateErr = boom

	cases := []struct {
		name  string
		store QuotaStore
	}{
		{"lookup error", lookupErr},
		{"insert error", insertErr},
		{"update error", updateErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := newTestQuota(tc.store, now)
			if d := q.Check(context.Background(), "session", 1); !d.Allowed {
				t.Fatalf("store error must fail open")
			}
		})
	}
}
