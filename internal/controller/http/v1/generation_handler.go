package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/24sk/anime/internal/domain/entity"
	"github.com/24sk/anime/internal/domain/usecase"
)

type GenerationUseCase interface {
	Submit(ctx context.Context, req usecase.SubmitRequest) (*entity.GenerationJob, error)
	Poll(ctx context.Context, jobID string) (*entity.GenerationJob, error)
}

type GenerationHandler struct {
	UseCase GenerationUseCase
}

func NewGenerationHandler(u GenerationUseCase) *GenerationHandler {
	return &GenerationHandler{UseCase: u}
}

type submitGenerationRequest struct {
	AnonSessionID string `json:"anon_session_id"`
	ImageURL      string `json:"image_url"`
	StyleType     string `json:"style_type"`
}

// Submit accepts an icon generation job and returns 202 immediately; the
// heavy work continues in the background. The body always reports pending
// even though the record has usually advanced to processing already.
func (h *GenerationHandler) Submit(c *gin.Context) {
	var req submitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, entity.NewValidationError("invalid request body"))
		return
	}

	job, err := h.UseCase.Submit(c.Request.Context(), usecase.SubmitRequest{
		AnonSessionID:  req.AnonSessionID,
		SourceImageURL: req.ImageURL,
		StyleType:      entity.StyleType(req.StyleType),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": entity.StatusPending})
}

func (h *GenerationHandler) GetStatus(c *gin.Context) {
	job, err := h.UseCase.Poll(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
