package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/24sk/anime/internal/domain/entity"
)

// writeError renders any error in the single wire shape clients see. Raw
// detail from unclassified errors never leaves the server.
func writeError(c *gin.Context, err error) {
	appErr := entity.AsAppError(err)
	c.JSON(appErr.Status, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
