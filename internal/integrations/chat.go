package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/tidwall/gjson"
)

// ErrUnknownModel is returned for model aliases outside the catalog.
var ErrUnknownModel = errors.New("integrations: unknown model")

// ModelInfo describes one chat model alias.
type ModelInfo struct {
	ID       string `json:"id"`
	Upstream string `json:"upstream"`
	OwnedBy  string `json:"owned_by"`
}

// Catalog maps route aliases to upstream model names.
var Catalog = []ModelInfo{
	{ID: "deepseek", Upstream: "deepseek-chat", OwnedBy: "deepseek"},
	{ID: "copilot", Upstream: "copilot", OwnedBy: "microsoft"},
	{ID: "gpt5", Upstream: "gpt-5", OwnedBy: "openai"},
}

// LookupModel returns the catalog entry for alias.
func LookupModel(alias string) (ModelInfo, bool) {
	for _, m := range Catalog {
		if m.ID == alias {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Completion is a chat answer.
type Completion struct {
	Model            string `json:"model"`
	Text             string `json:"text"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// ChatModel answers a single prompt.
type ChatModel interface {
	Complete(ctx context.Context, model, prompt string) Outcome[Completion]
	Models() []ModelInfo
}

// HTTPChat calls an OpenAI-compatible chat completions endpoint.
type HTTPChat struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPChat builds a chat client from cfg. An empty base URL makes every
// completion degrade to canned text.
func NewHTTPChat(cfg config.IntegrationsConfig) *HTTPChat {
	return &HTTPChat{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.ChatBaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.ChatAPIKey),
		client:  newHTTPClient(cfg.Timeout),
	}
}

// Models returns the model catalog.
func (h *HTTPChat) Models() []ModelInfo {
	return Catalog
}

// Complete sends prompt to the upstream model behind alias.
func (h *HTTPChat) Complete(ctx context.Context, alias, prompt string) Outcome[Completion] {
	return observe("chat", h.complete(ctx, alias, prompt))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

func (h *HTTPChat) complete(ctx context.Context, alias, prompt string) Outcome[Completion] {
	fallback := FallbackCompletion(alias)
	info, ok := LookupModel(alias)
	if !ok {
		return Degrade(fallback, ErrUnknownModel.Error())
	}
	if h.baseURL == "" {
		return Degrade(fallback, "chat upstream is not configured")
	}

	payload, errMarshal := json.Marshal(chatRequest{
		Model:    info.Upstream,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if errMarshal != nil {
		return Degrade(fallback, errMarshal.Error())
	}

	reqCtx, cancel := withTimeout(ctx, h.client)
	defer cancel()
	req, errReq := http.NewRequestWithContext(reqCtx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(payload))
	if errReq != nil {
		return Degrade(fallback, errReq.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	body, errDo := doRequest(h.client, req)
	if errDo != nil {
		return Degrade(fallback, errDo.Error())
	}
	text := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if text == "" {
		return Degrade(fallback, "upstream returned an empty completion")
	}
	return Ok(Completion{
		Model:            alias,
		Text:             text,
		PromptTokens:     gjson.GetBytes(body, "usage.prompt_tokens").Int(),
		CompletionTokens: gjson.GetBytes(body, "usage.completion_tokens").Int(),
	})
}

// FallbackCompletion is the canned answer served when the upstream fails.
func FallbackCompletion(alias string) Completion {
	text := "The assistant is temporarily unavailable. Please try again later."
	switch alias {
	case "deepseek":
		text = "DeepSeek is busy right now. Please retry in a moment."
	case "copilot":
		text = "Copilot could not be reached. Please retry in a moment."
	case "gpt5":
		text = "GPT-5 is temporarily unavailable. Please retry in a moment."
	}
	return Completion{Model: alias, Text: text}
}
