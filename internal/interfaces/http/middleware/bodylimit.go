package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/healthbudget/backend/internal/interfaces/http/dto"
)

// DefaultBodyLimit caps request bodies; the largest payload is a template put
const DefaultBodyLimit int64 = 1 << 20

// BodyLimit rejects requests whose declared length exceeds maxBytes and caps
// the body reader for the rest
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
				dto.ErrCodeRequestTooLarge,
				"request body exceeds maximum allowed size",
				GetRequestID(c),
			))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
