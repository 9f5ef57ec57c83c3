package psql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/24sk/anime/internal/domain/entity"
)

// GormJobRepo owns GenerationJob records. Terminal writes go through
// CompleteJob/FailJob so a finished job always carries its completion
// timestamp.
type GormJobRepo struct {
	DB *gorm.DB
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{DB: db}
}

func (r *GormJobRepo) CreateJob(ctx context.Context, job *entity.GenerationJob) error {
	return r.DB.WithContext(ctx).Create(job).Error
}

func (r *GormJobRepo) UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus) error {
	return r.DB.WithContext(ctx).
		Model(&entity.GenerationJob{}).
		Where("id = ?", jobID).
		Update("status", status).Error
}

func (r *GormJobRepo) CompleteJob(ctx context.Context, jobID, resultURL string) error {
	return r.DB.WithContext(ctx).
		Model(&entity.GenerationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":           entity.StatusCompleted,
			"result_image_url": resultURL,
			"completed_at":     time.Now(),
		}).Error
}

func (r *GormJobRepo) FailJob(ctx context.Context, jobID, userMessage string) error {
	return r.DB.WithContext(ctx).
		Model(&entity.GenerationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":        entity.StatusFailed,
			"error_message": userMessage,
			"completed_at":  time.Now(),
		}).Error
}

func (r *GormJobRepo) GetJob(ctx context.Context, jobID string) (*entity.GenerationJob, error) {
	job := &entity.GenerationJob{}
	if err := r.DB.WithContext(ctx).First(job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("job lookup: %w", err)
	}
	return job, nil
}
