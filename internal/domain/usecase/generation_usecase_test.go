package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/24sk/anime/internal/domain/entity"
)

const (
	testSession = "6f1c8a3e-9d2b-4f7a-8c5e-1a2b3c4d5e6f"
	testPhoto   = "https://cdn.example.com/uploads/photo.png"
)

func newTestGenerationUC(repo *fakeJobRepo, cache *fakeCache, storage *fakeStorage, gen *fakeGenerator) *GenerationUseCase {
	return NewGenerationUseCase(repo, cache, storage, gen, zap.NewNop())
}

func TestGenerationSubmit_Validation(t *testing.T) {
	uc := newTestGenerationUC(newFakeJobRepo(), newFakeCache(), newFakeStorage(), &fakeGenerator{})

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"bad session", SubmitRequest{AnonSessionID: "nope", SourceImageURL: testPhoto, StyleType: entity.StyleWatercolor}},
		{"bad url", SubmitRequest{AnonSessionID: testSession, SourceImageURL: "not-a-url", StyleType: entity.StyleWatercolor}},
		{"unknown style", SubmitRequest{AnonSessionID: testSession, SourceImageURL: testPhoto, StyleType: "vaporwave"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Submit(context.Background(), tc.req)
			appErr := entity.AsAppError(err)
			if appErr.Code != entity.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerationSubmit_CompletesInBackground(t *testing.T) {
	repo := newFakeJobRepo()
	cache := newFakeCache()
	storage := newFakeStorage()
	uc := newTestGenerationUC(repo, cache, storage, &fakeGenerator{})

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.Style3DAnime,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != entity.StatusProcessing {
		t.Fatalf("job should be processing before the response, got %q", job.Status)
	}

	uc.Wait()

	final := repo.get(job.ID)
	if final.Status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %q", final.Status)
	}
	if final.ResultImageURL == nil || !strings.Contains(*final.ResultImageURL, job.ID) {
		t.Fatalf("unexpected result url: %v", final.ResultImageURL)
	}
}

func TestGenerationSubmit_ReturnedJobIsSnapshot(t *testing.T) {
	repo := newFakeJobRepo()
	uc := newTestGenerationUC(repo, newFakeCache(), newFakeStorage(), &fakeGenerator{})

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleSimpleIllustration,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	// The continuation owns the record; the caller's copy must stay frozen
	// at submission time even after the work finished.
	if job.Status != entity.StatusProcessing {
		t.Fatalf("caller's copy mutated by the continuation, got %q", job.Status)
	}
	if job.ResultImageURL != nil {
		t.Fatalf("caller's copy mutated by the continuation, result=%v", *job.ResultImageURL)
	}
	if final := repo.get(job.ID); final.Status != entity.StatusCompleted {
		t.Fatalf("expected completed record, got %q", final.Status)
	}
}

func TestGenerationSubmit_DeadlineExpiryStillTerminates(t *testing.T) {
	repo := newFakeJobRepo()
	repo.rejectDeadCtx = true
	gen := &fakeGenerator{
		generate: func(ctx context.Context, _, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	uc := newTestGenerationUC(repo, newFakeCache(), newFakeStorage(), gen)
	uc.BackgroundTimeout = 20 * time.Millisecond

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleWatercolor,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	// The very deadline that killed the generation must not also kill the
	// terminal write; otherwise the job is stuck in processing forever.
	final := repo.get(job.ID)
	if final.Status != entity.StatusFailed {
		t.Fatalf("timed-out continuation must still reach a terminal state, got %q", final.Status)
	}
	if final.ErrorMessage == nil || *final.ErrorMessage == "" {
		t.Fatalf("terminal failure should carry a user-facing message")
	}
}

func TestGenerationSubmit_UpstreamFailureReachesTerminalFailed(t *testing.T) {
	repo := newFakeJobRepo()
	storage := newFakeStorage()
	gen := &fakeGenerator{
		generate: func(context.Context, string, string) ([]byte, error) {
			return nil, errors.New("upstream: prohibited_content")
		},
	}
	uc := newTestGenerationUC(repo, newFakeCache(), storage, gen)

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleWatercolor,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	final := repo.get(job.ID)
	if final.Status != entity.StatusFailed {
		t.Fatalf("expected failed, got %q", final.Status)
	}
	if final.ErrorMessage == nil || strings.Contains(*final.ErrorMessage, "prohibited_content") {
		t.Fatalf("raw upstream detail must not leak into the record: %v", final.ErrorMessage)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != testPhoto {
		t.Fatalf("source artifact should be cleaned up, deleted=%v", storage.deleted)
	}
}

func TestGenerationSubmit_PanicStillTerminates(t *testing.T) {
	repo := newFakeJobRepo()
	gen := &fakeGenerator{
		analyze: func(context.Context, string) (string, error) { panic("boom") },
	}
	uc := newTestGenerationUC(repo, newFakeCache(), newFakeStorage(), gen)

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleFluffy,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	if final := repo.get(job.ID); final.Status != entity.StatusFailed {
		t.Fatalf("panicking continuation must still leave a terminal state, got %q", final.Status)
	}
}

func TestGenerationPoll(t *testing.T) {
	repo := newFakeJobRepo()
	cache := newFakeCache()
	uc := newTestGenerationUC(repo, cache, newFakeStorage(), &fakeGenerator{})

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleCyberpunk,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	got, err := uc.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.Status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}

	if _, err := uc.Poll(context.Background(), "not-a-uuid"); entity.AsAppError(err).Code != entity.CodeValidation {
		t.Fatalf("malformed id should be a validation error, got %v", err)
	}
	if _, err := uc.Poll(context.Background(), "00000000-0000-4000-8000-000000000000"); entity.AsAppError(err).Code != entity.CodeNotFound {
		t.Fatalf("unknown id should be not found, got %v", err)
	}
}

func TestGenerationPoll_ServesFromCacheWithoutRepo(t *testing.T) {
	repo := newFakeJobRepo()
	cache := newFakeCache()
	uc := newTestGenerationUC(repo, cache, newFakeStorage(), &fakeGenerator{})

	job, err := uc.Submit(context.Background(), SubmitRequest{
		AnonSessionID:  testSession,
		SourceImageURL: testPhoto,
		StyleType:      entity.StyleKorean,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	uc.Wait()

	// Wipe the record store: the cached copy must still answer.
	repo.mu.Lock()
	repo.jobs = map[string]*entity.GenerationJob{}
	repo.mu.Unlock()

	got, err := uc.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll from cache: %v", err)
	}
	if got.ID != job.ID {
		t.Fatalf("unexpected cached job: %+v", got)
	}
}
