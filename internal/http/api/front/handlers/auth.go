package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	store    *store.Store
	resp     *gatewayhttp.Responder
	jwtCfg   config.JWTConfig
	quotaCfg config.QuotaConfig
	now      func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(s *store.Store, resp *gatewayhttp.Responder, jwtCfg config.JWTConfig, quotaCfg config.QuotaConfig, now func() time.Time) *AuthHandler {
	return &AuthHandler{store: s, resp: resp, jwtCfg: jwtCfg, quotaCfg: quotaCfg, now: now}
}

// registerRequest defines the request body for user registration.
type registerRequest struct {
	Name     string `json:"name" binding:"max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account on the free plan together with its default
// API key.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	if errWeak := security.ValidatePassword(body.Password); errWeak != nil {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"password": errWeak.Error()})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		h.resp.InternalError(c, errHash, "hash password failed")
		return
	}
	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		h.resp.InternalError(c, errGenerate, "generate api key failed")
		return
	}

	user := &models.User{
		Email:    body.Email,
		Password: hash,
		Name:     strings.TrimSpace(body.Name),
		Plan:     models.PlanFree,
		Active:   true,
		Verified: true,
	}
	key := &models.APIKey{
		Name:       "Default",
		APIKey:     token,
		Active:     true,
		DailyLimit: h.quotaCfg.PlanLimit(models.PlanFree),
	}
	if errCreate := h.store.CreateUserWithKey(c.Request.Context(), user, key); errCreate != nil {
		if errors.Is(errCreate, store.ErrDuplicateEmail) {
			h.resp.Error(c, http.StatusConflict, "Conflict", "email is already registered")
			return
		}
		h.resp.InternalError(c, errCreate, "create user failed")
		return
	}

	log.WithField("user_id", user.ID).Info("user registered")
	h.resp.OK(c, http.StatusCreated, "registration successful", gin.H{
		"user": serializeUser(user),
		"api_key": gin.H{
			"id":          key.ID,
			"name":        key.Name,
			"key":         key.APIKey,
			"daily_limit": key.DailyLimit,
		},
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"omitempty,numeric,len=6"`
}

// Login verifies credentials, and the TOTP code when MFA is enabled, then
// opens a session and issues a bearer token for it.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}

	user, errFind := h.store.FindUserByEmail(c.Request.Context(), body.Email)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "invalid email or password")
			return
		}
		h.resp.InternalError(c, errFind, "find user failed")
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "invalid email or password")
		return
	}
	if !user.Active {
		h.resp.Error(c, http.StatusForbidden, string(access.InactiveAccount), access.InactiveAccount.Message())
		return
	}
	if user.MFAEnabled() {
		if body.TOTPCode == "" {
			h.resp.Error(c, http.StatusForbidden, "MFARequired", "totp_code is required for this account")
			return
		}
		if !security.ValidateTOTP(body.TOTPCode, user.TOTPSecret) {
			h.resp.Error(c, http.StatusUnauthorized, string(access.InvalidCredential), "invalid TOTP code")
			return
		}
	}

	h.respondWithUserToken(c, user)
}

// respondWithUserToken records a session and responds with its token.
func (h *AuthHandler) respondWithUserToken(c *gin.Context, user *models.User) {
	now := nowUTC(h.now)
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		CreatedAt: now,
	}
	if errSession := h.store.CreateSession(c.Request.Context(), session); errSession != nil {
		h.resp.InternalError(c, errSession, "create session failed")
		return
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Email, user.Plan, session.ID, now, h.jwtCfg.Expiry)
	if errToken != nil {
		h.resp.InternalError(c, errToken, "generate token failed")
		return
	}

	h.resp.OK(c, http.StatusOK, "login successful", gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": now.Add(h.jwtCfg.Expiry),
		"user":       serializeUser(user),
	})
}

// Logout deletes the session behind the bearer token.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal := gatewayhttp.PrincipalFrom(c)
	if principal.Claims == nil {
		h.resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), access.MissingCredential.Message())
		return
	}
	if errDelete := h.store.DeleteSession(c.Request.Context(), principal.Claims.SessionID()); errDelete != nil {
		h.resp.InternalError(c, errDelete, "delete session failed")
		return
	}
	h.resp.OK(c, http.StatusOK, "logged out", nil)
}

// ResetPassword is not offered: no code path issues reset tokens.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	h.resp.Error(c, http.StatusNotImplemented, "NotImplemented", "password reset is not available")
}
