package handlers

import (
	"net/http"
	"strings"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/gin-gonic/gin"
)

// DownloadHandler serves the media downloader routes.
type DownloadHandler struct {
	downloader integrations.Downloader
	resp       *gatewayhttp.Responder
}

// NewDownloadHandler constructs a DownloadHandler.
func NewDownloadHandler(downloader integrations.Downloader, resp *gatewayhttp.Responder) *DownloadHandler {
	return &DownloadHandler{downloader: downloader, resp: resp}
}

// mediaQuery defines the query parameters shared by downloader routes.
type mediaQuery struct {
	URL string `form:"url" binding:"required,url"`
}

// Download resolves a media URL on one of the supported platforms.
func (h *DownloadHandler) Download(c *gin.Context) {
	platform := strings.ToLower(strings.TrimSpace(c.Param("platform")))
	if !integrations.SupportedPlatform(platform) {
		h.resp.Error(c, http.StatusNotFound, "NotFound", "unsupported platform, use one of: "+strings.Join(integrations.Platforms, ", "))
		return
	}
	mediaURL, ok := h.bindMediaURL(c)
	if !ok {
		return
	}

	out := h.downloader.Fetch(c.Request.Context(), platform, mediaURL)
	if out.Degraded {
		h.resp.Degraded(c, platform+" download is temporarily unavailable, showing sample data", out.Value)
		return
	}
	h.resp.OK(c, http.StatusOK, platform+" media resolved", out.Value)
}

// YouTubeInfo returns video metadata without download links.
func (h *DownloadHandler) YouTubeInfo(c *gin.Context) {
	mediaURL, ok := h.bindMediaURL(c)
	if !ok {
		return
	}

	out := h.downloader.Fetch(c.Request.Context(), integrations.PlatformYouTube, mediaURL)
	info := gin.H{
		"source_url":       out.Value.SourceURL,
		"title":            out.Value.Title,
		"author":           out.Value.Author,
		"thumbnail":        out.Value.Thumbnail,
		"duration_seconds": out.Value.Duration,
	}
	if out.Degraded {
		h.resp.Degraded(c, "youtube info is temporarily unavailable, showing sample data", info)
		return
	}
	h.resp.OK(c, http.StatusOK, "youtube info retrieved", info)
}

func (h *DownloadHandler) bindMediaURL(c *gin.Context) (string, bool) {
	var q mediaQuery
	if !gatewayhttp.BindQuery(c, h.resp, &q) {
		return "", false
	}
	if errURL := integrations.ValidateMediaURL(q.URL); errURL != nil {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"url": "must be an absolute http(s) URL"})
		return "", false
	}
	return strings.TrimSpace(q.URL), true
}
