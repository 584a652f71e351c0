package handlers

import (
	"net/http"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/usage"
	"github.com/gin-gonic/gin"
)

// UsageHandler handles usage statistics endpoints.
type UsageHandler struct {
	recorder *usage.Recorder
	resp     *gatewayhttp.Responder
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(recorder *usage.Recorder, resp *gatewayhttp.Responder) *UsageHandler {
	return &UsageHandler{recorder: recorder, resp: resp}
}

// usageStatsQuery defines query parameters for daily stats.
type usageStatsQuery struct {
	Days int `form:"days,default=7" binding:"min=1,max=365"`
}

// Stats returns per-day request counts and latency, newest first.
func (h *UsageHandler) Stats(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	var q usageStatsQuery
	if !gatewayhttp.BindQuery(c, h.resp, &q) {
		return
	}

	stats, errStats := h.recorder.StatsForUser(c.Request.Context(), userID, q.Days)
	if errStats != nil {
		h.resp.InternalError(c, errStats, "usage stats failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "usage statistics retrieved", gin.H{"days": q.Days, "stats": stats})
}

// Summary returns request totals for today and the last 7 and 30 days.
func (h *UsageHandler) Summary(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	summary, errSummary := h.recorder.Summary(c.Request.Context(), userID)
	if errSummary != nil {
		h.resp.InternalError(c, errSummary, "usage summary failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "usage summary retrieved", summary)
}
