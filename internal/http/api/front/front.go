package front

import (
	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/http/api"
	"github.com/apigate-dev/restgateway/internal/http/api/front/handlers"
	"github.com/gin-gonic/gin"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, deps api.Deps) {
	if r == nil || deps.Store == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(deps.Store, deps.Resp, deps.Config.JWT, deps.Config.Quota, deps.Now)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.POST("/reset-password", authHandler.ResetPassword)

	billingHandler := handlers.NewBillingHandler(deps.Store, deps.Resp, deps.Payments, deps.Config.Quota)
	front.POST("/billing/webhook", billingHandler.Webhook)

	authed := front.Group("")
	authed.Use(gatewayhttp.GateMiddleware(deps.Gate, access.PolicyUser, deps.Resp))

	authed.POST("/logout", authHandler.Logout)
	authed.POST("/billing/checkout", billingHandler.Checkout)

	profileHandler := handlers.NewProfileHandler(deps.Store, deps.Resp)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.PUT("/profile/password", profileHandler.ChangePassword)
	authed.DELETE("/profile", profileHandler.Delete)

	mfaHandler := handlers.NewMFAHandler(deps.Store, deps.Resp, deps.Config.Auth.TOTPIssuer, deps.PendingTOTP)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	apiKeyHandler := handlers.NewAPIKeyHandler(deps.Store, deps.Resp, deps.Config.Quota, deps.Now)
	authed.GET("/api-keys", apiKeyHandler.List)
	authed.POST("/api-keys", apiKeyHandler.Create)
	authed.POST("/api-keys/:id/revoke", apiKeyHandler.Revoke)
	authed.POST("/api-keys/:id/regenerate", apiKeyHandler.Regenerate)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Delete)

	usageHandler := handlers.NewUsageHandler(deps.Recorder, deps.Resp)
	authed.GET("/usage/stats", usageHandler.Stats)
	authed.GET("/usage/summary", usageHandler.Summary)
}
