package handlers

import (
	"net/http"
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/gin-gonic/gin"
)

// QuotaHandler reports the calling key's quota.
type QuotaHandler struct {
	resp *gatewayhttp.Responder
	now  func() time.Time
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(resp *gatewayhttp.Responder, now func() time.Time) *QuotaHandler {
	if now == nil {
		now = time.Now
	}
	return &QuotaHandler{resp: resp, now: now}
}

// Get returns the quota state after this request was counted.
func (h *QuotaHandler) Get(c *gin.Context) {
	principal := gatewayhttp.PrincipalFrom(c)
	if principal.APIKey == nil || principal.Quota == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "an API key is required")
		return
	}

	key := principal.APIKey
	d := principal.Quota
	h.resp.OK(c, http.StatusOK, "quota retrieved", gin.H{
		"key_id":      key.ID,
		"key_name":    key.Name,
		"status":      key.Status(h.now().UTC()),
		"plan":        principal.User.Plan,
		"daily_limit": d.Limit,
		"used_today":  d.Used,
		"remaining":   d.Remaining,
		"reset_date":  d.ResetDate,
		"reset_at":    d.ResetAt,
	})
}
