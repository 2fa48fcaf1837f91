// Package middleware provides the gin middleware of the budget API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
)

// Request headers understood by the API
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
)

// MaxRequestIDLength bounds client-supplied request ids
const MaxRequestIDLength = 128

// RequestID tags each request with an id, keeping the caller's when it is
// present and not oversized
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > MaxRequestIDLength {
			id = generateRequestID()
		}
		c.Set(logger.GinRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(logger.GinRequestIDKey)
}

func generateRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var secureHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// Secure sets the response headers a JSON-only API needs
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, kv := range secureHeaders {
			c.Header(kv[0], kv[1])
		}
		c.Next()
	}
}
