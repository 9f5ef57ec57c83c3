package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/24sk/anime/internal/domain/entity"
	"github.com/24sk/anime/internal/domain/usecase"
)

type StampUseCase interface {
	GenerateSingle(ctx context.Context, req usecase.SingleStampRequest) (string, error)
	SubmitBatch(ctx context.Context, req usecase.BatchRequest) (string, error)
	PollBatch(ctx context.Context, jobID string) (*entity.LineStampBatchJob, error)
}

type StampHandler struct {
	UseCase StampUseCase
}

func NewStampHandler(u StampUseCase) *StampHandler {
	return &StampHandler{UseCase: u}
}

type singleStampRequest struct {
	AnonSessionID string `json:"anon_session_id"`
	ImageURL      string `json:"image_url"`
	WordID        string `json:"word_id"`
	CustomLabel   string `json:"custom_label"`
	StyleType     string `json:"style_type"`
	PaletteIndex  int    `json:"palette_index"`
}

// GenerateSingle is the synchronous path: the finished sticker URL comes back
// in the response.
func (h *StampHandler) GenerateSingle(c *gin.Context) {
	var req singleStampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, entity.NewValidationError("invalid request body"))
		return
	}

	imageURL, err := h.UseCase.GenerateSingle(c.Request.Context(), usecase.SingleStampRequest{
		AnonSessionID: req.AnonSessionID,
		ImageURL:      req.ImageURL,
		WordID:        req.WordID,
		CustomLabel:   req.CustomLabel,
		StyleType:     entity.StyleType(req.StyleType),
		PaletteIndex:  req.PaletteIndex,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

type batchStampRequest struct {
	AnonSessionID     string   `json:"anon_session_id"`
	ImageURL          string   `json:"image_url"`
	Texts             []string `json:"texts"`
	StampCount        int      `json:"stamp_count"`
	IncludeMainAndTab bool     `json:"include_main_and_tab"`
}

func (h *StampHandler) SubmitBatch(c *gin.Context) {
	var req batchStampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, entity.NewValidationError("invalid request body"))
		return
	}

	jobID, err := h.UseCase.SubmitBatch(c.Request.Context(), usecase.BatchRequest{
		AnonSessionID:     req.AnonSessionID,
		ImageURL:          req.ImageURL,
		Texts:             req.Texts,
		StampCount:        req.StampCount,
		IncludeMainAndTab: req.IncludeMainAndTab,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": entity.StatusProcessing})
}

func (h *StampHandler) GetBatchStatus(c *gin.Context) {
	job, err := h.UseCase.PollBatch(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Words lists the preset sticker labels clients can pick from.
func (h *StampHandler) Words(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"words": entity.StampWords})
}
