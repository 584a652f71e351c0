package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles admin user endpoints.
type UserHandler struct {
	store    *store.Store
	resp     *gatewayhttp.Responder
	quotaCfg config.QuotaConfig
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(s *store.Store, resp *gatewayhttp.Responder, quotaCfg config.QuotaConfig) *UserHandler {
	return &UserHandler{store: s, resp: resp, quotaCfg: quotaCfg}
}

// listUsersQuery defines query parameters for listing users.
type listUsersQuery struct {
	pageQuery
	Q string `form:"q" binding:"max=255"` // Email or name substring.
}

// List pages through users.
func (h *UserHandler) List(c *gin.Context) {
	var q listUsersQuery
	if !gatewayhttp.BindQuery(c, h.resp, &q) {
		return
	}

	users, total, errList := h.store.ListUsers(c.Request.Context(), strings.TrimSpace(q.Q), q.Page, q.PageSize)
	if errList != nil {
		h.resp.InternalError(c, errList, "list users failed")
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, serializeUser(&users[i]))
	}
	h.resp.OK(c, http.StatusOK, "users retrieved", gin.H{
		"users":     out,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// updateUserRequest defines the request body for admin user updates.
type updateUserRequest struct {
	Active *bool   `json:"active"`
	Plan   *string `json:"plan" binding:"omitempty,oneof=free basic pro enterprise admin"`
}

// Update toggles a user's active flag and moves them between plans. A plan
// change resets every key's daily limit to the new plan's limit.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, h.resp)
	if !ok {
		return
	}
	var body updateUserRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if body.Active == nil && body.Plan == nil {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"active": "active or plan is required"})
		return
	}

	ctx := c.Request.Context()
	if body.Active != nil {
		if errActive := h.store.SetUserActive(ctx, id, *body.Active); errActive != nil {
			h.notFoundOrInternal(c, errActive, "update user active failed")
			return
		}
	}
	if body.Plan != nil {
		plan, _ := models.NormalizePlan(*body.Plan)
		if errPlan := h.store.UpdatePlan(ctx, id, plan, h.quotaCfg.PlanLimit(plan)); errPlan != nil {
			h.notFoundOrInternal(c, errPlan, "update user plan failed")
			return
		}
	}

	user, errFind := h.store.FindUserByID(ctx, id)
	if errFind != nil {
		h.notFoundOrInternal(c, errFind, "find user failed")
		return
	}
	log.WithFields(log.Fields{
		"admin_id": gatewayhttp.UserID(c),
		"user_id":  id,
		"plan":     user.Plan,
		"active":   user.Active,
	}).Info("admin: user updated")
	h.resp.OK(c, http.StatusOK, "user updated", serializeUser(user))
}

func (h *UserHandler) notFoundOrInternal(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		h.resp.Error(c, http.StatusNotFound, "NotFound", "user not found")
		return
	}
	h.resp.InternalError(c, err, what)
}
