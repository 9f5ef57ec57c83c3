package psql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/24sk/anime/internal/domain/entity"
)

// GormStampJobRepo owns LineStampBatchJob records.
type GormStampJobRepo struct {
	DB *gorm.DB
}

func NewGormStampJobRepo(db *gorm.DB) *GormStampJobRepo {
	return &GormStampJobRepo{DB: db}
}

func (r *GormStampJobRepo) CreateJob(ctx context.Context, job *entity.LineStampBatchJob) error {
	return r.DB.WithContext(ctx).Create(job).Error
}

func (r *GormStampJobRepo) UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus) error {
	return r.DB.WithContext(ctx).
		Model(&entity.LineStampBatchJob{}).
		Where("id = ?", jobID).
		Update("status", status).Error
}

func (r *GormStampJobRepo) SetProgress(ctx context.Context, jobID string, progress int) error {
	return r.DB.WithContext(ctx).
		Model(&entity.LineStampBatchJob{}).
		Where("id = ?", jobID).
		Update("progress", progress).Error
}

// SetResults stores whichever result references are ready; nil fields are
// left untouched so partial progress survives later failures.
func (r *GormStampJobRepo) SetResults(ctx context.Context, jobID string, mainURL, tabURL, archiveURL *string) error {
	updates := map[string]interface{}{}
	if mainURL != nil {
		updates["main_image_url"] = *mainURL
	}
	if tabURL != nil {
		updates["tab_image_url"] = *tabURL
	}
	if archiveURL != nil {
		updates["archive_url"] = *archiveURL
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Model(&entity.LineStampBatchJob{}).
		Where("id = ?", jobID).
		Updates(updates).Error
}

func (r *GormStampJobRepo) CompleteJob(ctx context.Context, jobID string) error {
	return r.DB.WithContext(ctx).
		Model(&entity.LineStampBatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":   entity.StatusCompleted,
			"progress": 100,
		}).Error
}

func (r *GormStampJobRepo) FailJob(ctx context.Context, jobID, userMessage string) error {
	return r.DB.WithContext(ctx).
		Model(&entity.LineStampBatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":        entity.StatusFailed,
			"error_message": userMessage,
			"updated_at":    time.Now(),
		}).Error
}

func (r *GormStampJobRepo) GetJob(ctx context.Context, jobID string) (*entity.LineStampBatchJob, error) {
	job := &entity.LineStampBatchJob{}
	if err := r.DB.WithContext(ctx).First(job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("stamp job lookup: %w", err)
	}
	return job, nil
}
