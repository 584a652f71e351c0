// Package v1 registers the metered resource routes.
package v1

import (
	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/http/api"
	"github.com/apigate-dev/restgateway/internal/http/api/v1/handlers"
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes registers API-key protected and public resource routes.
func RegisterV1Routes(r *gin.Engine, deps api.Deps) {
	if r == nil || deps.Gate == nil {
		return
	}

	downloadHandler := handlers.NewDownloadHandler(deps.Downloader, deps.Resp)
	aiHandler := handlers.NewAIHandler(deps.Chat, deps.Resp)
	quotaHandler := handlers.NewQuotaHandler(deps.Resp, deps.Now)

	public := r.Group("/api/v1/public")
	public.Use(
		gatewayhttp.BurstLimit(deps.Limiter, deps.Resp),
		gatewayhttp.GateMiddleware(deps.Gate, access.PolicyOptionalAPIKey, deps.Resp),
		gatewayhttp.UsageMiddleware(deps.Recorder),
	)
	public.GET("/ai/models", aiHandler.Models)
	public.GET("/download/youtube/info", downloadHandler.YouTubeInfo)

	keyed := r.Group("/api/v1")
	keyed.Use(
		gatewayhttp.GateMiddleware(deps.Gate, access.PolicyAPIKey, deps.Resp),
		gatewayhttp.UsageMiddleware(deps.Recorder),
	)
	keyed.GET("/download/:platform", downloadHandler.Download)
	keyed.POST("/ai/:model", aiHandler.Complete)
	keyed.GET("/me/quota", quotaHandler.Get)
}
