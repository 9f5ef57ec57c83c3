package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/24sk/anime/internal/admission"
	"github.com/24sk/anime/internal/domain/batch"
	"github.com/24sk/anime/internal/domain/entity"
	"github.com/24sk/anime/internal/pipeline"
	"github.com/24sk/anime/internal/prompt"
)

// DefaultBatchTimeout bounds one batch continuation; a full 40-item batch
// makes up to 40*3 synthesis calls.
const DefaultBatchTimeout = 30 * time.Minute

type StampJobRepo interface {
	CreateJob(ctx context.Context, job *entity.LineStampBatchJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status entity.JobStatus) error
	SetProgress(ctx context.Context, jobID string, progress int) error
	SetResults(ctx context.Context, jobID string, mainURL, tabURL, archiveURL *string) error
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID, userMessage string) error
	GetJob(ctx context.Context, jobID string) (*entity.LineStampBatchJob, error)
}

type ProgressCache interface {
	SetBatchProgress(ctx context.Context, jobID string, progress int) error
	GetBatchProgress(ctx context.Context, jobID string) (int, error)
}

type QuotaChecker interface {
	Check(ctx context.Context, sessionID string, increment int) admission.Decision
}

type Processor interface {
	Process(raw []byte, label string, paletteIndex int) ([]byte, error)
	ProcessAux(raw []byte, width, height int) ([]byte, error)
}

// StampUseCase covers the sticker flows: the synchronous single-item path and
// the background batch driven by the batch.Tracker.
type StampUseCase struct {
	Jobs      StampJobRepo
	Cache     ProgressCache
	Storage   Storage
	Generator Generator
	Pipeline  Processor
	Quota     QuotaChecker
	Log       *zap.Logger

	BatchTimeout time.Duration
	// Fetch downloads stored artifacts for archive assembly.
	Fetch func(ctx context.Context, rawURL string) ([]byte, error)

	wg sync.WaitGroup
}

func NewStampUseCase(jobs StampJobRepo, cache ProgressCache, storage Storage, gen Generator, proc Processor, quota QuotaChecker, log *zap.Logger) *StampUseCase {
	return &StampUseCase{
		Jobs:         jobs,
		Cache:        cache,
		Storage:      storage,
		Generator:    gen,
		Pipeline:     proc,
		Quota:        quota,
		Log:          log,
		BatchTimeout: DefaultBatchTimeout,
		Fetch:        fetchURL,
	}
}

type SingleStampRequest struct {
	AnonSessionID string
	ImageURL      string
	WordID        string
	CustomLabel   string
	StyleType     entity.StyleType
	PaletteIndex  int
}

// resolveLabel applies the word_id XOR custom_label rule.
func (r SingleStampRequest) resolveLabel() (string, error) {
	custom := strings.TrimSpace(r.CustomLabel)
	hasWord := r.WordID != ""
	hasCustom := custom != ""
	if hasWord == hasCustom {
		return "", entity.NewValidationError("specify exactly one of word_id and custom_label")
	}
	if hasCustom {
		if len([]rune(custom)) > entity.CustomLabelMaxLength {
			return "", entity.NewValidationError(
				fmt.Sprintf("label must be at most %d characters", entity.CustomLabelMaxLength))
		}
		return custom, nil
	}
	word, ok := entity.LookupWord(r.WordID)
	if !ok {
		return "", entity.NewValidationError("unknown word id")
	}
	return word.Label, nil
}

// GenerateSingle is the synchronous path: one quota slot, one generation, the
// finished asset returned directly with no job record.
func (u *StampUseCase) GenerateSingle(ctx context.Context, req SingleStampRequest) (string, error) {
	if _, err := uuid.Parse(req.AnonSessionID); err != nil {
		return "", entity.NewValidationError("invalid session id")
	}
	if parsed, err := url.Parse(req.ImageURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", entity.NewValidationError("invalid image url")
	}
	label, err := req.resolveLabel()
	if err != nil {
		return "", err
	}

	if decision := u.Quota.Check(ctx, req.AnonSessionID, 1); !decision.Allowed {
		return "", entity.NewQuotaExceededError(admission.DailyStampLimit)
	}

	description, err := u.Generator.AnalyzeImage(ctx, prompt.ModelAnalysis, prompt.ForAnalysis(), req.ImageURL)
	if err != nil {
		return "", entity.ClassifyUpstream(err)
	}

	resultURL, err := u.generateStamp(ctx, req.AnonSessionID, req.ImageURL, label, description, prompt.ModelForStyle(req.StyleType), req.PaletteIndex)
	if err != nil {
		return "", entity.ClassifyUpstream(err)
	}
	return resultURL, nil
}

// generateStamp runs one label through synthesis, the post-processing
// pipeline, and storage. Shared by the single path and the batch runner; the
// caller picks the model explicitly.
func (u *StampUseCase) generateStamp(ctx context.Context, sessionID, imageURL, label, description, model string, paletteIndex int) (string, error) {
	stickerPrompt := prompt.ForSticker(label, description)

	raw, err := u.Generator.GenerateImage(ctx, model, stickerPrompt, imageURL)
	if err != nil {
		return "", err
	}

	processed, err := u.Pipeline.Process(raw, label, paletteIndex)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("results/%s/%s_stamp.png", sessionID, uuid.New().String())
	return u.Storage.Upload(ctx, key, processed, "image/png")
}

type BatchRequest struct {
	AnonSessionID     string
	ImageURL          string
	Texts             []string
	StampCount        int
	IncludeMainAndTab bool
}

func (r BatchRequest) validate() error {
	if _, err := uuid.Parse(r.AnonSessionID); err != nil {
		return entity.NewValidationError("invalid session id")
	}
	if parsed, err := url.Parse(r.ImageURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return entity.NewValidationError("invalid image url")
	}
	if len(r.Texts) == 0 {
		return entity.NewValidationError("at least one text is required")
	}
	for _, t := range r.Texts {
		length := len([]rune(strings.TrimSpace(t)))
		if length == 0 || length > entity.CustomLabelMaxLength {
			return entity.NewValidationError(
				fmt.Sprintf("each text must be 1-%d characters", entity.CustomLabelMaxLength))
		}
	}
	if r.StampCount < 1 || r.StampCount > entity.MaxStampsPerRequest {
		return entity.NewValidationError(
			fmt.Sprintf("stamp_count must be between 1 and %d", entity.MaxStampsPerRequest))
	}
	if len(r.Texts) > r.StampCount {
		return entity.NewValidationError("more texts selected than stamps to create")
	}
	return nil
}

// SubmitBatch admits min(len(texts), stamp_count) quota slots atomically,
// creates the batch record, and launches the background continuation.
func (u *StampUseCase) SubmitBatch(ctx context.Context, req BatchRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	planned := len(req.Texts)
	if req.StampCount < planned {
		planned = req.StampCount
	}
	if decision := u.Quota.Check(ctx, req.AnonSessionID, planned); !decision.Allowed {
		return "", entity.NewQuotaExceededError(admission.DailyStampLimit)
	}

	job := &entity.LineStampBatchJob{
		ID:                uuid.New().String(),
		AnonSessionID:     req.AnonSessionID,
		ImageURL:          req.ImageURL,
		Texts:             datatypes.NewJSONSlice(req.Texts[:planned]),
		StampCount:        planned,
		IncludeMainAndTab: req.IncludeMainAndTab,
		Status:            entity.StatusPending,
	}
	if err := u.Jobs.CreateJob(ctx, job); err != nil {
		return "", entity.NewInternalError(err)
	}
	if err := u.Jobs.UpdateJobStatus(ctx, job.ID, entity.StatusProcessing); err != nil {
		u.Log.Error("failed to advance stamp job to processing",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	// The continuation owns job from here; read the id before spawning.
	jobID := job.ID
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.runBatch(job)
	}()

	return jobID, nil
}

// runBatch is the batch continuation. The deferred guard force-writes failed
// on panic; every other path reaches a terminal write at the end.
func (u *StampUseCase) runBatch(job *entity.LineStampBatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), u.BatchTimeout)
	defer cancel()
	// persist outlives the deadline above: the terminal write must not die
	// with the context whose expiry caused the failure.
	persist := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			u.Log.Error("batch continuation panicked",
				zap.String("job_id", job.ID), zap.Any("panic", r))
			if err := u.Jobs.FailJob(persist, job.ID, entity.NewInternalError(nil).Message); err != nil {
				u.Log.Error("failed to write terminal failed state",
					zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}()

	description, err := u.Generator.AnalyzeImage(ctx, prompt.ModelAnalysis, prompt.ForAnalysis(), job.ImageURL)
	if err != nil {
		appErr := entity.ClassifyUpstream(err)
		u.Log.Error("batch analysis failed", zap.String("job_id", job.ID), zap.Error(err))
		if err := u.Jobs.FailJob(persist, job.ID, appErr.Message); err != nil {
			u.Log.Error("failed to write terminal failed state",
				zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	tracker := batch.NewTracker(batch.MaxRetries)
	tracker.Start(job.Texts)

	// First pass, then automatic retry rounds until nothing is retryable.
	u.generateRound(ctx, job, tracker, description, tracker.Keys())
	for {
		retry := tracker.RetryFailed()
		if len(retry) == 0 {
			break
		}
		u.Log.Info("retrying failed batch items",
			zap.String("job_id", job.ID), zap.Int("count", len(retry)))
		u.generateRound(ctx, job, tracker, description, retry)
	}

	var mainURL, tabURL *string
	if job.IncludeMainAndTab {
		mainURL = u.generateAux(ctx, job, tracker, &tracker.Main, "main", description,
			pipeline.MainImageWidth, pipeline.MainImageHeight)
		tabURL = u.generateAux(ctx, job, tracker, &tracker.Tab, "tab", description,
			pipeline.TabImageWidth, pipeline.TabImageHeight)
	}

	archiveURL := u.buildArchive(ctx, job, tracker, mainURL, tabURL)
	if err := u.Jobs.SetResults(persist, job.ID, mainURL, tabURL, archiveURL); err != nil {
		u.Log.Error("failed to store batch results", zap.String("job_id", job.ID), zap.Error(err))
	}

	// Partial failure is a valid terminal outcome; only a batch with zero
	// successes fails as a whole.
	if tracker.SuccessCount() == 0 {
		if err := u.Jobs.FailJob(persist, job.ID, "No stickers could be generated. Please try a different photo."); err != nil {
			u.Log.Error("failed to write terminal failed state",
				zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}
	if err := u.Jobs.CompleteJob(persist, job.ID); err != nil {
		u.Log.Error("failed to complete stamp job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	u.writeProgress(persist, job.ID, 100)
	u.Log.Info("stamp batch completed",
		zap.String("job_id", job.ID),
		zap.Int("success", tracker.SuccessCount()),
		zap.Int("requested", len(job.Texts)))
}

func (u *StampUseCase) generateRound(ctx context.Context, job *entity.LineStampBatchJob, tracker *batch.Tracker, description string, keys []string) {
	order := indexByLabel(job.Texts)
	for _, label := range keys {
		// Batch stickers always use the default image model.
		resultURL, err := u.generateStamp(ctx, job.AnonSessionID, job.ImageURL, label, description, prompt.ModelDefault, order[label])
		if err != nil {
			appErr := entity.ClassifyUpstream(err)
			u.Log.Warn("batch item failed",
				zap.String("job_id", job.ID), zap.String("label", label), zap.Error(err))
			tracker.MarkFailure(label, appErr.Message)
		} else {
			tracker.MarkSuccess(label, resultURL)
		}
		u.writeProgress(ctx, job.ID, tracker.Progress())
	}
}

// generateAux produces one single-shot auxiliary image, honoring the attempt
// cap tracked by the AuxResult.
func (u *StampUseCase) generateAux(ctx context.Context, job *entity.LineStampBatchJob, tracker *batch.Tracker, aux *batch.AuxResult, kind, description string, width, height int) *string {
	for tracker.StartAux(aux) {
		raw, err := u.Generator.GenerateImage(ctx, prompt.ModelDefault, prompt.ForAux(description), job.ImageURL)
		if err == nil {
			var processed []byte
			processed, err = u.Pipeline.ProcessAux(raw, width, height)
			if err == nil {
				key := fmt.Sprintf("results/%s/%s_%s.png", job.AnonSessionID, job.ID, kind)
				var uploaded string
				uploaded, err = u.Storage.Upload(ctx, key, processed, "image/png")
				if err == nil {
					aux.Succeed(uploaded)
					return &uploaded
				}
			}
		}
		appErr := entity.ClassifyUpstream(err)
		u.Log.Warn("auxiliary image attempt failed",
			zap.String("job_id", job.ID), zap.String("kind", kind), zap.Error(err))
		aux.Fail(appErr.Message)
	}
	return nil
}

// buildArchive zips every successful sticker (plus aux images when present)
// and uploads it. Best-effort: an archive failure does not fail the batch.
func (u *StampUseCase) buildArchive(ctx context.Context, job *entity.LineStampBatchJob, tracker *batch.Tracker, mainURL, tabURL *string) *string {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	wrote := 0
	for i, label := range tracker.Keys() {
		res, ok := tracker.Result(label)
		if !ok || res.Status != batch.StatusSuccess || res.ImageURL == "" {
			continue
		}
		data, err := u.Fetch(ctx, res.ImageURL)
		if err != nil {
			u.Log.Warn("failed to fetch sticker for archive",
				zap.String("job_id", job.ID), zap.String("label", label), zap.Error(err))
			continue
		}
		if err := writeZipFile(w, fmt.Sprintf("%02d.png", i+1), data); err != nil {
			u.Log.Warn("failed to write archive entry", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		wrote++
	}
	for name, ref := range map[string]*string{"main.png": mainURL, "tab.png": tabURL} {
		if ref == nil {
			continue
		}
		if data, err := u.Fetch(ctx, *ref); err == nil {
			if err := writeZipFile(w, name, data); err == nil {
				wrote++
			}
		}
	}

	if err := w.Close(); err != nil || wrote == 0 {
		return nil
	}

	key := fmt.Sprintf("results/%s/%s_stamps.zip", job.AnonSessionID, job.ID)
	archiveURL, err := u.Storage.Upload(ctx, key, buf.Bytes(), "application/zip")
	if err != nil {
		u.Log.Warn("failed to upload archive", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	return &archiveURL
}

// PollBatch returns the batch record, preferring the cached progress when it
// is fresher than the stored one.
func (u *StampUseCase) PollBatch(ctx context.Context, jobID string) (*entity.LineStampBatchJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, entity.NewValidationError("invalid job id")
	}
	job, err := u.Jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.NewNotFoundError("stamp job not found")
		}
		return nil, entity.NewInternalError(err)
	}
	if cached, err := u.Cache.GetBatchProgress(ctx, jobID); err == nil && cached > job.Progress {
		job.Progress = cached
	}
	return job, nil
}

// Wait blocks until every in-flight batch continuation has finished.
func (u *StampUseCase) Wait() { u.wg.Wait() }

func (u *StampUseCase) writeProgress(ctx context.Context, jobID string, progress int) {
	if err := u.Jobs.SetProgress(ctx, jobID, progress); err != nil {
		u.Log.Warn("failed to persist progress", zap.String("job_id", jobID), zap.Error(err))
	}
	if err := u.Cache.SetBatchProgress(ctx, jobID, progress); err != nil {
		u.Log.Warn("failed to cache progress", zap.String("job_id", jobID), zap.Error(err))
	}
}

func indexByLabel(labels []string) map[string]int {
	out := make(map[string]int, len(labels))
	for i, label := range labels {
		if _, ok := out[label]; !ok {
			out[label] = i
		}
	}
	return out
}

func writeZipFile(w *zip.Writer, name string, data []byte) error {
	f, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
