package handlers

import (
	"net/http"
	"strings"

	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// MFAHandler handles TOTP enrollment endpoints.
type MFAHandler struct {
	store   *store.Store
	resp    *gatewayhttp.Responder
	issuer  string
	pending *security.PendingTOTPSecrets
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(s *store.Store, resp *gatewayhttp.Responder, issuer string, pending *security.PendingTOTPSecrets) *MFAHandler {
	if pending == nil {
		pending = security.NewPendingTOTPSecrets(nil)
	}
	return &MFAHandler{store: s, resp: resp, issuer: issuer, pending: pending}
}

// Status reports whether TOTP is enabled for the current user.
func (h *MFAHandler) Status(c *gin.Context) {
	user := gatewayhttp.CurrentUser(c)
	if user == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "authentication required")
		return
	}
	h.resp.OK(c, http.StatusOK, "mfa status retrieved", gin.H{"totp_enabled": user.MFAEnabled()})
}

// PrepareTOTP generates a secret that becomes active once confirmed.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	user := gatewayhttp.CurrentUser(c)
	if user == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "authentication required")
		return
	}
	if user.MFAEnabled() {
		h.resp.Error(c, http.StatusConflict, "Conflict", "totp is already enabled")
		return
	}

	enrollment, errEnroll := security.NewTOTPEnrollment(h.issuer, user.Email)
	if errEnroll != nil {
		h.resp.InternalError(c, errEnroll, "prepare totp failed")
		return
	}
	h.pending.Set(user.ID, enrollment.Secret)

	h.resp.OK(c, http.StatusOK, "totp secret generated", gin.H{
		"secret":      enrollment.Secret,
		"otpauth_url": enrollment.OTPAuthURL,
		"qr_code":     enrollment.QRImage,
	})
}

// totpCodeRequest carries a 6-digit TOTP code.
type totpCodeRequest struct {
	Code string `json:"code" binding:"required,numeric,len=6"`
}

// ConfirmTOTP enables TOTP after verifying a code against the pending secret.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	user := gatewayhttp.CurrentUser(c)
	if user == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "authentication required")
		return
	}
	var body totpCodeRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}

	secret, ok := h.pending.Get(user.ID)
	if !ok {
		h.resp.Error(c, http.StatusBadRequest, string(access.ValidationError), "no pending totp enrollment, prepare again")
		return
	}
	if !security.ValidateTOTP(strings.TrimSpace(body.Code), secret) {
		h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "invalid totp code")
		return
	}

	if errSet := h.store.SetTOTPSecret(c.Request.Context(), user.ID, secret); errSet != nil {
		h.resp.InternalError(c, errSet, "enable totp failed")
		return
	}
	h.pending.Delete(user.ID)
	log.WithField("user_id", user.ID).Info("totp enabled")
	h.resp.OK(c, http.StatusOK, "totp enabled", gin.H{"totp_enabled": true})
}

// DisableTOTP turns TOTP off after verifying a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	user := gatewayhttp.CurrentUser(c)
	if user == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), "authentication required")
		return
	}
	if !user.MFAEnabled() {
		h.resp.Error(c, http.StatusConflict, "Conflict", "totp is not enabled")
		return
	}
	var body totpCodeRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if !security.ValidateTOTP(body.Code, user.TOTPSecret) {
		h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "invalid totp code")
		return
	}

	if errSet := h.store.SetTOTPSecret(c.Request.Context(), user.ID, ""); errSet != nil {
		h.resp.InternalError(c, errSet, "disable totp failed")
		return
	}
	log.WithField("user_id", user.ID).Info("totp disabled")
	h.resp.OK(c, http.StatusOK, "totp disabled", gin.H{"totp_enabled": false})
}
