package logging

import (
	"strings"
	"time"

	"github.com/apigate-dev/restgateway/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request ID in and out of the gateway.
const RequestIDHeader = "X-Request-ID"

// ginRequestIDKey is the gin context key for the request ID.
const ginRequestIDKey = "requestID"

// SetGinRequestID stores the request ID on the gin context.
func SetGinRequestID(c *gin.Context, requestID string) {
	if c == nil {
		return
	}
	c.Set(ginRequestIDKey, requestID)
}

// GetGinRequestID returns the request ID stored on the gin context.
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(ginRequestIDKey); ok {
		if s, okString := v.(string); okString {
			return s
		}
	}
	return ""
}

// GinRequestID assigns each request an ID, reusing a sane inbound one.
func GinRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		SetGinRequestID(c, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GinLogger writes one access log line per request. API keys and tokens in
// the query string are masked.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery); raw != "" {
			path = path + "?" + raw
		}
		entry := log.WithFields(log.Fields{
			"request_id": GetGinRequestID(c),
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
