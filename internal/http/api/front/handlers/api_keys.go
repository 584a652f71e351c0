package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
)

// maxKeysPerUser bounds how many keys one account may hold.
const maxKeysPerUser = 20

// APIKeyHandler handles API key endpoints for front users.
type APIKeyHandler struct {
	store    *store.Store
	resp     *gatewayhttp.Responder
	quotaCfg config.QuotaConfig
	now      func() time.Time
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(s *store.Store, resp *gatewayhttp.Responder, quotaCfg config.QuotaConfig, now func() time.Time) *APIKeyHandler {
	return &APIKeyHandler{store: s, resp: resp, quotaCfg: quotaCfg, now: now}
}

// List returns the user's keys with today's quota status.
func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}

	rows, errList := h.store.ListAPIKeysByUser(c.Request.Context(), userID)
	if errList != nil {
		h.resp.InternalError(c, errList, "list api keys failed")
		return
	}

	now := nowUTC(h.now)
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, serializeAPIKey(&rows[i], now))
	}
	h.resp.OK(c, http.StatusOK, "api keys retrieved", gin.H{"api_keys": out, "total": len(out)})
}

// serializeAPIKey converts a key to its API representation. The full key is
// only returned on create and regenerate.
func serializeAPIKey(row *models.APIKey, now time.Time) gin.H {
	d := quota.Snapshot(row, now)
	return gin.H{
		"id":           row.ID,
		"name":         row.Name,
		"key_prefix":   maskKey(row.APIKey),
		"active":       row.Active,
		"status":       row.Status(now),
		"daily_limit":  d.Limit,
		"used_today":   d.Used,
		"remaining":    d.Remaining,
		"reset_date":   d.ResetDate,
		"expires_at":   row.ExpiresAt,
		"revoked_at":   row.RevokedAt,
		"last_used_at": row.LastUsedAt,
		"created_at":   row.CreatedAt,
	}
}

// createAPIKeyRequest defines the request body for creating keys.
type createAPIKeyRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	ExpiresIn *int   `json:"expires_in_days" binding:"omitempty,min=1,max=3650"`
}

// Create issues a new key with the daily limit of the user's plan.
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	var body createAPIKeyRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"name": "is required"})
		return
	}

	count, errCount := h.store.CountAPIKeysByUser(c.Request.Context(), userID)
	if errCount != nil {
		h.resp.InternalError(c, errCount, "count api keys failed")
		return
	}
	if count >= maxKeysPerUser {
		h.resp.Error(c, http.StatusConflict, "Conflict", "API key limit reached, revoke or delete a key first")
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		h.resp.InternalError(c, errGenerate, "generate api key failed")
		return
	}

	now := nowUTC(h.now)
	var expiresAt *time.Time
	if body.ExpiresIn != nil {
		exp := now.AddDate(0, 0, *body.ExpiresIn)
		expiresAt = &exp
	}
	row := &models.APIKey{
		UserID:     userID,
		Name:       name,
		APIKey:     token,
		Active:     true,
		DailyLimit: h.quotaCfg.PlanLimit(gatewayhttp.CurrentUser(c).Plan),
		ExpiresAt:  expiresAt,
	}
	if errCreate := h.store.CreateAPIKey(c.Request.Context(), row); errCreate != nil {
		h.resp.InternalError(c, errCreate, "create api key failed")
		return
	}

	out := serializeAPIKey(row, now)
	out["key"] = token
	h.resp.OK(c, http.StatusCreated, "api key created", out)
}

// Revoke deactivates a key.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.resp)
	if !ok {
		return
	}

	if errRevoke := h.store.RevokeAPIKey(c.Request.Context(), userID, id, nowUTC(h.now)); errRevoke != nil {
		h.notFoundOrInternal(c, errRevoke, "revoke api key failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "api key revoked", gin.H{"id": id})
}

// Regenerate replaces the key value. Quota counters are kept.
func (h *APIKeyHandler) Regenerate(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.resp)
	if !ok {
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		h.resp.InternalError(c, errGenerate, "generate api key failed")
		return
	}
	if errRegenerate := h.store.RegenerateAPIKey(c.Request.Context(), userID, id, token); errRegenerate != nil {
		h.notFoundOrInternal(c, errRegenerate, "regenerate api key failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "api key regenerated", gin.H{"id": id, "key": token})
}

// Delete removes a key permanently.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.resp)
	if !ok {
		return
	}

	if errDelete := h.store.DeleteAPIKey(c.Request.Context(), userID, id); errDelete != nil {
		h.notFoundOrInternal(c, errDelete, "delete api key failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "api key deleted", gin.H{"id": id})
}

func (h *APIKeyHandler) notFoundOrInternal(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		h.resp.Error(c, http.StatusNotFound, "NotFound", "api key not found")
		return
	}
	h.resp.InternalError(c, err, what)
}
