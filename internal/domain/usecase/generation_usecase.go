package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/24sk/anime/internal/domain/entity"
	"github.com/24sk/anime/internal/prompt"
)

// DefaultBackgroundTimeout bounds one background continuation. Generous:
// analysis plus synthesis against the remote model can take minutes.
const DefaultBackgroundTimeout = 5 * time.Minute

type JobRepo interface {
	CreateJob(ctx context.Context, job *entity.GenerationJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus) error
	CompleteJob(ctx context.Context, jobID, resultURL string) error
	FailJob(ctx context.Context, jobID, userMessage string) error
	GetJob(ctx context.Context, jobID string) (*entity.GenerationJob, error)
}

type JobCache interface {
	SetJob(ctx context.Context, jobID, payload string) error
	GetJob(ctx context.Context, jobID string) (string, error)
}

type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

type Generator interface {
	AnalyzeImage(ctx context.Context, model, instruction, imageURL string) (string, error)
	GenerateImage(ctx context.Context, model, prompt, sourceImageURL string) ([]byte, error)
}

// GenerationUseCase drives one icon job from submission through its
// background continuation to a guaranteed terminal state.
type GenerationUseCase struct {
	Jobs      JobRepo
	Cache     JobCache
	Storage   Storage
	Generator Generator
	Log       *zap.Logger

	BackgroundTimeout time.Duration
	// wg lets tests and shutdown wait for in-flight continuations.
	wg sync.WaitGroup
}

func NewGenerationUseCase(jobs JobRepo, cache JobCache, storage Storage, gen Generator, log *zap.Logger) *GenerationUseCase {
	return &GenerationUseCase{
		Jobs:              jobs,
		Cache:             cache,
		Storage:           storage,
		Generator:         gen,
		Log:               log,
		BackgroundTimeout: DefaultBackgroundTimeout,
	}
}

type SubmitRequest struct {
	AnonSessionID  string
	SourceImageURL string
	StyleType      entity.StyleType
}

func (r SubmitRequest) validate() error {
	if _, err := uuid.Parse(r.AnonSessionID); err != nil {
		return entity.NewValidationError("invalid session id")
	}
	if u, err := url.Parse(r.SourceImageURL); err != nil || u.Scheme == "" || u.Host == "" {
		return entity.NewValidationError("invalid source image url")
	}
	if !r.StyleType.Valid() {
		return entity.NewValidationError(fmt.Sprintf("unknown style type %q", r.StyleType))
	}
	return nil
}

// Submit validates the request, creates the job record and launches the
// background continuation. The record is moved to processing before this
// returns: if the continuation never runs, the job must not look
// indistinguishable from "not yet started".
func (u *GenerationUseCase) Submit(ctx context.Context, req SubmitRequest) (*entity.GenerationJob, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	job := &entity.GenerationJob{
		ID:             uuid.New().String(),
		AnonSessionID:  req.AnonSessionID,
		SourceImageURL: req.SourceImageURL,
		StyleType:      req.StyleType,
		Status:         entity.StatusPending,
		CreatedAt:      time.Now(),
	}
	if err := u.Jobs.CreateJob(ctx, job); err != nil {
		return nil, entity.NewInternalError(err)
	}

	if err := u.Jobs.UpdateJobStatus(ctx, job.ID, entity.StatusProcessing); err != nil {
		u.Log.Error("failed to advance job to processing", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		job.Status = entity.StatusProcessing
	}
	u.cacheJob(ctx, job)

	// The continuation owns job from here; hand the caller a copy so the
	// response read cannot race the background writes.
	snapshot := *job
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.runGeneration(job)
	}()

	return &snapshot, nil
}

// runGeneration is the detached continuation. Whatever happens inside, the
// job leaves in a terminal state: the deferred guard force-writes failed on
// panic, and every error path funnels through finalizeFailure.
func (u *GenerationUseCase) runGeneration(job *entity.GenerationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), u.BackgroundTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			u.Log.Error("generation continuation panicked",
				zap.String("job_id", job.ID), zap.Any("panic", r))
			u.finalizeFailure(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := u.generate(ctx, job); err != nil {
		u.finalizeFailure(ctx, job, err)
	}
}

func (u *GenerationUseCase) generate(ctx context.Context, job *entity.GenerationJob) error {
	description, err := u.Generator.AnalyzeImage(ctx, prompt.ModelAnalysis, prompt.ForAnalysis(), job.SourceImageURL)
	if err != nil {
		return err
	}

	genPrompt, err := prompt.ForStyle(job.StyleType, description)
	if err != nil {
		return err
	}

	model := prompt.ModelForStyle(job.StyleType)
	image, err := u.Generator.GenerateImage(ctx, model, genPrompt, job.SourceImageURL)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("results/%s/%s_icon.png", job.AnonSessionID, job.ID)
	resultURL, err := u.Storage.Upload(ctx, key, image, "image/png")
	if err != nil {
		return err
	}

	if err := u.Jobs.CompleteJob(ctx, job.ID, resultURL); err != nil {
		return err
	}

	now := time.Now()
	job.Status = entity.StatusCompleted
	job.ResultImageURL = &resultURL
	job.CompletedAt = &now
	u.cacheJob(ctx, job)

	u.Log.Info("generation job completed",
		zap.String("job_id", job.ID), zap.String("style", string(job.StyleType)))
	return nil
}

// finalizeFailure classifies the error, cleans up the uploaded source
// artifact best-effort, and force-writes the terminal state. The FailJob
// write is unconditional: a job left in processing forever is the one
// disallowed outcome.
func (u *GenerationUseCase) finalizeFailure(ctx context.Context, job *entity.GenerationJob, cause error) {
	// The failure may be the continuation deadline itself; the terminal write
	// must not die with the context that caused it.
	ctx = context.WithoutCancel(ctx)
	appErr := entity.ClassifyUpstream(cause)
	u.Log.Error("generation job failed",
		zap.String("job_id", job.ID),
		zap.String("code", string(appErr.Code)),
		zap.Error(cause))

	if job.SourceImageURL != "" {
		if err := u.Storage.DeleteByURL(ctx, job.SourceImageURL); err != nil {
			u.Log.Warn("failed to delete source artifact",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	if err := u.Jobs.FailJob(ctx, job.ID, appErr.Message); err != nil {
		u.Log.Error("failed to write terminal failed state",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	now := time.Now()
	job.Status = entity.StatusFailed
	job.ErrorMessage = &appErr.Message
	job.CompletedAt = &now
	u.cacheJob(ctx, job)
}

// Poll returns the job record, serving from the cache when possible.
func (u *GenerationUseCase) Poll(ctx context.Context, jobID string) (*entity.GenerationJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, entity.NewValidationError("invalid job id")
	}

	if payload, err := u.Cache.GetJob(ctx, jobID); err == nil && payload != "" {
		var job entity.GenerationJob
		if err := json.Unmarshal([]byte(payload), &job); err == nil {
			return &job, nil
		}
	}

	job, err := u.Jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.NewNotFoundError("job not found")
		}
		return nil, entity.NewInternalError(err)
	}
	u.cacheJob(ctx, job)
	return job, nil
}

// Wait blocks until every in-flight continuation has finished.
func (u *GenerationUseCase) Wait() { u.wg.Wait() }

func (u *GenerationUseCase) cacheJob(ctx context.Context, job *entity.GenerationJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := u.Cache.SetJob(ctx, job.ID, string(payload)); err != nil {
		u.Log.Warn("failed to cache job", zap.String("job_id", job.ID), zap.Error(err))
	}
}
