package handlers

import (
	"net/http"
	"strings"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/gin-gonic/gin"
)

// AIHandler serves the chat model routes.
type AIHandler struct {
	chat integrations.ChatModel
	resp *gatewayhttp.Responder
}

// NewAIHandler constructs an AIHandler.
func NewAIHandler(chat integrations.ChatModel, resp *gatewayhttp.Responder) *AIHandler {
	return &AIHandler{chat: chat, resp: resp}
}

// promptRequest defines the request body for chat completions.
type promptRequest struct {
	Prompt string `json:"prompt" binding:"required,max=8000"`
}

// Complete answers a prompt with the model named in the path.
func (h *AIHandler) Complete(c *gin.Context) {
	alias := strings.ToLower(strings.TrimSpace(c.Param("model")))
	if _, ok := integrations.LookupModel(alias); !ok {
		h.resp.Error(c, http.StatusNotFound, "NotFound", "unknown model "+alias)
		return
	}
	var body promptRequest
	if !gatewayhttp.BindJSON(c, h.resp, &body) {
		return
	}
	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		gatewayhttp.ValidationFailed(c, h.resp, map[string]string{"prompt": "is required"})
		return
	}

	out := h.chat.Complete(c.Request.Context(), alias, prompt)
	if out.Degraded {
		h.resp.Degraded(c, alias+" is temporarily unavailable, showing a canned answer", out.Value)
		return
	}
	h.resp.OK(c, http.StatusOK, alias+" completion generated", out.Value)
}

// Models lists the available chat models.
func (h *AIHandler) Models(c *gin.Context) {
	models := h.chat.Models()
	h.resp.OK(c, http.StatusOK, "models retrieved", gin.H{"models": models, "total": len(models)})
}
