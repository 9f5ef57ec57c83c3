package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/24sk/anime/internal/admission"
	"github.com/24sk/anime/internal/domain/entity"
	"gorm.io/gorm"
)

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*entity.GenerationJob

	failCreate error
	// rejectDeadCtx makes terminal writes behave like a real driver: any
	// write arriving on an expired context errors out immediately.
	rejectDeadCtx bool
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*entity.GenerationJob)}
}

func (f *fakeJobRepo) ctxErr(ctx context.Context) error {
	if f.rejectDeadCtx {
		return ctx.Err()
	}
	return nil
}

func (f *fakeJobRepo) CreateJob(_ context.Context, job *entity.GenerationJob) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobRepo) UpdateJobStatus(_ context.Context, jobID string, status entity.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	job.Status = status
	return nil
}

func (f *fakeJobRepo) CompleteJob(ctx context.Context, jobID, resultURL string) error {
	if err := f.ctxErr(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	job.Status = entity.StatusCompleted
	job.ResultImageURL = &resultURL
	return nil
}

func (f *fakeJobRepo) FailJob(ctx context.Context, jobID, userMessage string) error {
	if err := f.ctxErr(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	job.Status = entity.StatusFailed
	job.ErrorMessage = &userMessage
	return nil
}

func (f *fakeJobRepo) GetJob(_ context.Context, jobID string) (*entity.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) get(jobID string) *entity.GenerationJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

type fakeCache struct {
	mu       sync.Mutex
	jobs     map[string]string
	progress map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{jobs: make(map[string]string), progress: make(map[string]int)}
}

func (f *fakeCache) SetJob(_ context.Context, jobID, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = payload
	return nil
}

func (f *fakeCache) GetJob(_ context.Context, jobID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[jobID], nil
}

func (f *fakeCache) SetBatchProgress(_ context.Context, jobID string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[jobID] = progress
	return nil
}

func (f *fakeCache) GetBatchProgress(_ context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[jobID]
	if !ok {
		return -1, nil
	}
	return p, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	failUpload error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.failUpload != nil {
		return "", f.failUpload
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeStorage) DeleteByURL(_ context.Context, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, rawURL)
	return nil
}

func (f *fakeStorage) object(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

type fakeGenerator struct {
	mu       sync.Mutex
	analyze  func(ctx context.Context, imageURL string) (string, error)
	generate func(ctx context.Context, model, prompt string) ([]byte, error)
	calls    int
	models   []string
}

func (f *fakeGenerator) AnalyzeImage(ctx context.Context, _, _, imageURL string) (string, error) {
	if f.analyze == nil {
		return "a small brown dog", nil
	}
	return f.analyze(ctx, imageURL)
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, model, prompt, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.models = append(f.models, model)
	f.mu.Unlock()
	if f.generate == nil {
		return []byte("image-bytes"), nil
	}
	return f.generate(ctx, model, prompt)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) usedModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.models...)
}

type fakeProcessor struct {
	failProcess error
}

func (f *fakeProcessor) Process(raw []byte, label string, paletteIndex int) ([]byte, error) {
	if f.failProcess != nil {
		return nil, f.failProcess
	}
	return fmt.Appendf(nil, "sticker:%s:%d:%s", label, paletteIndex, raw), nil
}

func (f *fakeProcessor) ProcessAux(raw []byte, width, height int) ([]byte, error) {
	if f.failProcess != nil {
		return nil, f.failProcess
	}
	return fmt.Appendf(nil, "aux:%dx%d:%s", width, height, raw), nil
}

type fakeQuota struct {
	mu         sync.Mutex
	deny       bool
	increments []int
}

func (f *fakeQuota) Check(_ context.Context, _ string, increment int) admission.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments = append(f.increments, increment)
	if f.deny {
		return admission.Decision{Allowed: false}
	}
	return admission.Decision{Allowed: true, Remaining: admission.DailyStampLimit - increment}
}
