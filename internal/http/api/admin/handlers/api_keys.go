package handlers

import (
	"errors"
	"net/http"
	"time"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIKeyHandler handles admin API key endpoints.
type APIKeyHandler struct {
	store  *store.Store
	ledger *quota.Ledger
	resp   *gatewayhttp.Responder
	now    func() time.Time
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(s *store.Store, ledger *quota.Ledger, resp *gatewayhttp.Responder, now func() time.Time) *APIKeyHandler {
	if now == nil {
		now = time.Now
	}
	return &APIKeyHandler{store: s, ledger: ledger, resp: resp, now: now}
}

// listAPIKeysQuery defines query parameters for listing keys.
type listAPIKeysQuery struct {
	pageQuery
	UserID uint64 `form:"user_id"` // Owning user filter, 0 for all.
}

// List pages through API keys, optionally for one user.
func (h *APIKeyHandler) List(c *gin.Context) {
	var q listAPIKeysQuery
	if !gatewayhttp.BindQuery(c, h.resp, &q) {
		return
	}

	rows, total, errList := h.store.ListAPIKeys(c.Request.Context(), q.UserID, q.Page, q.PageSize)
	if errList != nil {
		h.resp.InternalError(c, errList, "list api keys failed")
		return
	}
	now := h.now().UTC()
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, serializeAPIKey(&rows[i], now))
	}
	h.resp.OK(c, http.StatusOK, "api keys retrieved", gin.H{
		"api_keys":  out,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// updateAPIKeyRequest defines the request body for admin key updates.
type updateAPIKeyRequest struct {
	Active     *bool `json:"active"`
	DailyLimit *int  `json:"daily_limit" binding:"omitempty,min=0"`
}

// Update activates or deactivates a key and overrides its daily limit.
func (h *APIKeyHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, h.resp)
	if !ok {
		return
	}
	var body updateAPIKeyRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if body.Active == nil && body.DailyLimit == nil {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"active": "active or daily_limit is required"})
		return
	}

	ctx := c.Request.Context()
	now := h.now().UTC()
	if body.Active != nil {
		if errActive := h.store.SetAPIKeyActive(ctx, id, *body.Active, now); errActive != nil {
			h.notFoundOrInternal(c, errActive, "update api key active failed")
			return
		}
	}
	if body.DailyLimit != nil {
		if errLimit := h.ledger.SetLimit(ctx, id, *body.DailyLimit); errLimit != nil {
			h.notFoundOrInternal(c, errLimit, "update api key limit failed")
			return
		}
	}

	row, errFind := h.store.FindAPIKeyByID(ctx, id)
	if errFind != nil {
		h.notFoundOrInternal(c, errFind, "find api key failed")
		return
	}
	log.WithFields(log.Fields{
		"admin_id":    gatewayhttp.UserID(c),
		"api_key_id":  id,
		"active":      row.Active,
		"daily_limit": row.DailyLimit,
	}).Info("admin: api key updated")
	h.resp.OK(c, http.StatusOK, "api key updated", serializeAPIKey(row, now))
}

func (h *APIKeyHandler) notFoundOrInternal(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, quota.ErrKeyNotFound) {
		h.resp.Error(c, http.StatusNotFound, "NotFound", "api key not found")
		return
	}
	h.resp.InternalError(c, err, what)
}
