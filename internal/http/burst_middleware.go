package http

import (
	"math"
	"net/http"
	"strconv"

	"github.com/apigate-dev/restgateway/internal/metrics"
	"github.com/apigate-dev/restgateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// BurstLimit applies the per-IP limiter. A nil limiter disables it and
// limiter errors let the request through.
func BurstLimit(limiter *ratelimit.Limiter, resp *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		res, errAllow := limiter.Allow(c.Request.Context(), c.ClientIP())
		if errAllow != nil {
			log.WithError(errAllow).Debug("burst limiter unavailable, allowing request")
		}
		if !res.Allowed {
			metrics.BurstRejections.Inc()
			c.Header("Retry-After", strconv.Itoa(max(int(math.Ceil(res.RetryAfter.Seconds())), 1)))
			resp.Error(c, http.StatusTooManyRequests, "RateLimited", "too many requests, slow down")
			return
		}
		c.Next()
	}
}
