package http

import (
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/logging"
	"github.com/apigate-dev/restgateway/internal/usage"
	"github.com/gin-gonic/gin"
)

// UsageRecorder receives one entry per completed API key request.
type UsageRecorder interface {
	Record(e usage.Entry)
}

// UsageMiddleware records API key requests after the handler completes. It
// must run after GateMiddleware; other principals are not recorded.
func UsageMiddleware(rec UsageRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		p := PrincipalFrom(c)
		if rec == nil || p.Kind != access.KindAPIKey || p.APIKey == nil {
			return
		}
		rec.Record(usage.Entry{
			UserID:       p.APIKey.UserID,
			APIKeyID:     p.APIKey.ID,
			Endpoint:     c.Request.URL.Path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
			IPAddress:    c.ClientIP(),
			RequestID:    logging.GetGinRequestID(c),
			ErrorMessage: c.GetString(errorMessageKey),
			At:           start,
		})
	}
}
