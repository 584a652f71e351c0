// Package admin registers the operator routes, reachable by users on the
// admin plan.
package admin

import (
	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/http/api"
	"github.com/apigate-dev/restgateway/internal/http/api/admin/handlers"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/gin-gonic/gin"
)

// RegisterAdminRoutes registers the admin user and API key routes.
func RegisterAdminRoutes(r *gin.Engine, deps api.Deps) {
	if r == nil || deps.Store == nil {
		return
	}

	admin := r.Group("/v0/admin")
	admin.Use(
		gatewayhttp.GateMiddleware(deps.Gate, access.PolicyUser, deps.Resp),
		gatewayhttp.RequirePlan(models.PlanAdmin, deps.Resp),
		adminPermissionMiddleware(deps.Resp),
	)

	userHandler := handlers.NewUserHandler(deps.Store, deps.Resp, deps.Config.Quota)
	admin.GET("/users", userHandler.List)
	admin.PUT("/users/:id", userHandler.Update)

	apiKeyHandler := handlers.NewAPIKeyHandler(deps.Store, deps.Ledger, deps.Resp, deps.Now)
	admin.GET("/api-keys", apiKeyHandler.List)
	admin.PUT("/api-keys/:id", apiKeyHandler.Update)
}
