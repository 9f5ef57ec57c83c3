package psql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/24sk/anime/internal/admission"
	"github.com/24sk/anime/internal/domain/entity"
)

// CounterRepo backs both admission stores. Requires the connection to be
// opened with TranslateError so a 23505 duplicate key surfaces as
// gorm.ErrDuplicatedKey.
type CounterRepo struct {
	DB *gorm.DB
}

func NewCounterRepo(db *gorm.DB) *CounterRepo {
	return &CounterRepo{DB: db}
}

func (r *CounterRepo) Get(ctx context.Context, ipHash string) (*entity.RateLimitCounter, error) {
	row := &entity.RateLimitCounter{}
	err := r.DB.WithContext(ctx).First(row, "ip_hash = ?", ipHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *CounterRepo) Create(ctx context.Context, row *entity.RateLimitCounter) error {
	return r.DB.WithContext(ctx).Create(row).Error
}

func (r *CounterRepo) Update(ctx context.Context, row *entity.RateLimitCounter) error {
	return r.DB.WithContext(ctx).Save(row).Error
}

// QuotaRepo implements admission.QuotaStore over generated_stamp_counts.
type QuotaRepo struct {
	DB *gorm.DB
}

func NewQuotaRepo(db *gorm.DB) *QuotaRepo {
	return &QuotaRepo{DB: db}
}

func (r *QuotaRepo) Get(ctx context.Context, sessionID, date string) (*entity.DailyQuotaCounter, error) {
	row := &entity.DailyQuotaCounter{}
	err := r.DB.WithContext(ctx).
		First(row, "anon_session_id = ? AND date = ?", sessionID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *QuotaRepo) Create(ctx context.Context, row *entity.DailyQuotaCounter) error {
	err := r.DB.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return admission.ErrConflict
	}
	return err
}

func (r *QuotaRepo) Update(ctx context.Context, row *entity.DailyQuotaCounter) error {
	return r.DB.WithContext(ctx).
		Model(&entity.DailyQuotaCounter{}).
		Where("anon_session_id = ? AND date = ?", row.AnonSessionID, row.Date).
		Updates(map[string]interface{}{
			"generated_count":   row.GeneratedCount,
			"last_generated_at": row.LastGeneratedAt,
		}).Error
}
