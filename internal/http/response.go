package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Rate limit headers sent on API key requests.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// errorMessageKey carries the envelope message of a failed request to the
// usage middleware.
const errorMessageKey = "errorMessage"

// Envelope is the body of every JSON response.
type Envelope struct {
	Status    bool              `json:"status"`
	Message   string            `json:"message"`
	Creator   string            `json:"creator"`
	Timestamp string            `json:"timestamp"`
	Code      string            `json:"code,omitempty"`
	Data      any               `json:"data,omitempty"`
	Quota     *QuotaBlock       `json:"quota,omitempty"`
	Limit     *int              `json:"limit,omitempty"`
	Remaining *int              `json:"remaining,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// QuotaBlock reports the caller's daily quota.
type QuotaBlock struct {
	DailyLimit int    `json:"daily_limit"`
	Remaining  int    `json:"remaining"`
	ResetDate  string `json:"reset_date"`
}

// Responder writes envelopes stamped with the configured creator.
type Responder struct {
	creator string
	now     func() time.Time
}

// NewResponder builds a responder. now defaults to time.Now.
func NewResponder(cfg config.ResponseConfig, now func() time.Time) *Responder {
	if now == nil {
		now = time.Now
	}
	return &Responder{creator: cfg.Creator, now: now}
}

func (r *Responder) envelope(ok bool, message string) Envelope {
	return Envelope{
		Status:    ok,
		Message:   message,
		Creator:   r.creator,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}
}

// OK writes a successful envelope. API key callers also get their quota.
func (r *Responder) OK(c *gin.Context, status int, message string, data any) {
	env := r.envelope(true, message)
	env.Data = data
	env.Quota = quotaBlockFrom(c)
	c.JSON(status, env)
}

// Degraded writes the 200 "soft failure" envelope used when an upstream
// integration failed and data holds the fallback value.
func (r *Responder) Degraded(c *gin.Context, message string, data any) {
	env := r.envelope(false, message)
	env.Data = data
	env.Quota = quotaBlockFrom(c)
	c.Set(errorMessageKey, message)
	c.JSON(http.StatusOK, env)
}

// Error aborts the request with an error envelope.
func (r *Responder) Error(c *gin.Context, status int, code, message string) {
	env := r.envelope(false, message)
	env.Code = code
	env.Quota = quotaBlockFrom(c)
	c.Set(errorMessageKey, message)
	c.AbortWithStatusJSON(status, env)
}

// InternalError logs err and aborts with a generic 500 envelope.
func (r *Responder) InternalError(c *gin.Context, err error, what string) {
	log.WithError(err).WithField("request_path", c.Request.URL.Path).Error(what)
	r.Error(c, http.StatusInternalServerError, string(access.StoreUnavailable), access.StoreUnavailable.Message())
}

// AccessError converts a gate error into its envelope. Quota denials carry
// limit and remaining in the body and the rate limit headers.
func (r *Responder) AccessError(c *gin.Context, err error) {
	kind := access.KindOf(err)
	env := r.envelope(false, kind.Message())
	env.Code = string(kind)

	if accessErr, ok := err.(*access.Error); ok && accessErr.Decision != nil {
		d := accessErr.Decision
		limit, remaining := d.Limit, d.Remaining
		env.Limit = &limit
		env.Remaining = &remaining
		setRateLimitHeaders(c, d)
	}
	if kind == access.StoreUnavailable {
		log.WithError(err).WithField("request_path", c.Request.URL.Path).Error("authentication failed")
	}
	c.Set(errorMessageKey, env.Message)
	c.AbortWithStatusJSON(kind.HTTPStatus(), env)
}

func setRateLimitHeaders(c *gin.Context, d *quota.Decision) {
	c.Header(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	c.Header(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	c.Header(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func quotaBlockFrom(c *gin.Context) *QuotaBlock {
	p := PrincipalFrom(c)
	if p.Kind != access.KindAPIKey || p.Quota == nil {
		return nil
	}
	return &QuotaBlock{
		DailyLimit: p.Quota.Limit,
		Remaining:  p.Quota.Remaining,
		ResetDate:  p.Quota.ResetDate,
	}
}
