package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	store *store.Store
	resp  *gatewayhttp.Responder
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(s *store.Store, resp *gatewayhttp.Responder) *ProfileHandler {
	return &ProfileHandler{store: s, resp: resp}
}

// Get returns the current user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}

	user, errFind := h.store.FindUserByID(c.Request.Context(), userID)
	if errFind != nil {
		h.resp.InternalError(c, errFind, "find user failed")
		return
	}
	keyCount, errCount := h.store.CountAPIKeysByUser(c.Request.Context(), userID)
	if errCount != nil {
		h.resp.InternalError(c, errCount, "count api keys failed")
		return
	}

	out := serializeUser(user)
	out["api_key_count"] = keyCount
	h.resp.OK(c, http.StatusOK, "profile retrieved", out)
}

// updateProfileRequest defines the request body for profile updates.
type updateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=255"`
	Email *string `json:"email" binding:"omitempty,email,max=255"`
}

// Update changes the display name and email.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	var body updateProfileRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}

	current := gatewayhttp.CurrentUser(c)
	name := current.Name
	if body.Name != nil {
		name = strings.TrimSpace(*body.Name)
	}
	email := ""
	if body.Email != nil {
		email = *body.Email
	}

	user, errUpdate := h.store.UpdateProfile(c.Request.Context(), userID, name, email)
	if errUpdate != nil {
		if errors.Is(errUpdate, store.ErrDuplicateEmail) {
			h.resp.Error(c, http.StatusConflict, "Conflict", "email is already registered")
			return
		}
		h.resp.InternalError(c, errUpdate, "update profile failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "profile updated", serializeUser(user))
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword verifies and updates the user's password.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	var body changePasswordRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}

	user := gatewayhttp.CurrentUser(c)
	if !security.CheckPassword(user.Password, body.OldPassword) {
		h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "old password is incorrect")
		return
	}
	if errWeak := security.ValidatePassword(body.NewPassword); errWeak != nil {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"new_password": errWeak.Error()})
		return
	}

	hash, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		h.resp.InternalError(c, errHash, "hash password failed")
		return
	}
	if errUpdate := h.store.UpdatePassword(c.Request.Context(), userID, hash); errUpdate != nil {
		h.resp.InternalError(c, errUpdate, "change password failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "password changed", nil)
}

// deleteAccountRequest confirms account deletion with the password.
type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

// Delete removes the account and every row that belongs to it.
func (h *ProfileHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c, h.resp)
	if !ok {
		return
	}
	var body deleteAccountRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if !security.CheckPassword(gatewayhttp.CurrentUser(c).Password, body.Password) {
		h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "password is incorrect")
		return
	}

	if errDelete := h.store.DeleteAccount(c.Request.Context(), userID); errDelete != nil {
		h.resp.InternalError(c, errDelete, "delete account failed")
		return
	}
	log.WithField("user_id", userID).Info("account deleted")
	h.resp.OK(c, http.StatusOK, "account deleted", nil)
}
