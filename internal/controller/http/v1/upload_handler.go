package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/24sk/anime/internal/domain/entity"
)

// MaxImageSizeBytes caps one uploaded photo at 4.5 MiB.
const MaxImageSizeBytes = 4608 * 1024

type UploadStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type UploadHandler struct {
	Storage UploadStorage
}

func NewUploadHandler(storage UploadStorage) *UploadHandler {
	return &UploadHandler{Storage: storage}
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Upload stores the source photo and returns its URL for later generation
// requests.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, entity.NewValidationError("file required"))
		return
	}
	if file.Size > MaxImageSizeBytes {
		writeError(c, entity.NewValidationError(
			fmt.Sprintf("file exceeds the %d byte limit", MaxImageSizeBytes)))
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		writeError(c, entity.NewValidationError("unsupported image type"))
		return
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, entity.NewInternalError(err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSizeBytes+1))
	if err != nil {
		writeError(c, entity.NewInternalError(err))
		return
	}
	if len(data) > MaxImageSizeBytes {
		writeError(c, entity.NewValidationError(
			fmt.Sprintf("file exceeds the %d byte limit", MaxImageSizeBytes)))
		return
	}

	name := strings.ReplaceAll(filepath.Base(file.Filename), " ", "_")
	key := fmt.Sprintf("uploads/%s_%s", uuid.New().String(), name)
	url, err := h.Storage.Upload(c.Request.Context(), key, data, contentType)
	if err != nil {
		writeError(c, entity.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": url})
}
