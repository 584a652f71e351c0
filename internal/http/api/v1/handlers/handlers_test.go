package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apigate-dev/restgateway/internal/config"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/gin-gonic/gin"
)

type fakeDownloader struct {
	platform, url string
	out           integrations.Outcome[integrations.Media]
}

func (f *fakeDownloader) Fetch(_ context.Context, platform, mediaURL string) integrations.Outcome[integrations.Media] {
	f.platform, f.url = platform, mediaURL
	return f.out
}

type fakeChat struct {
	out integrations.Outcome[integrations.Completion]
}

func (f *fakeChat) Complete(_ context.Context, model, _ string) integrations.Outcome[integrations.Completion] {
	out := f.out
	out.Value.Model = model
	return out
}

func (f *fakeChat) Models() []integrations.ModelInfo { return integrations.Catalog }

type result struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(d integrations.Downloader, chat integrations.ChatModel) *gin.Engine {
	gin.SetMode(gin.TestMode)
	resp := gatewayhttp.NewResponder(config.ResponseConfig{Creator: "tester"}, nil)
	downloads := NewDownloadHandler(d, resp)
	ai := NewAIHandler(chat, resp)
	q := NewQuotaHandler(resp, nil)

	r := gin.New()
	r.GET("/download/:platform", downloads.Download)
	r.GET("/youtube/info", downloads.YouTubeInfo)
	r.POST("/ai/:model", ai.Complete)
	r.GET("/ai/models", ai.Models)
	r.GET("/me/quota", q.Get)
	return r
}

func serve(t *testing.T, r *gin.Engine, method, target string, body []byte) (int, result) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out result
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), errDecode)
	}
	return rec.Code, out
}

func TestDownloadResolvesMedia(t *testing.T) {
	d := &fakeDownloader{out: integrations.Ok(integrations.Media{
		Platform:  "instagram",
		Title:     "Reel",
		Downloads: []integrations.MediaLink{{Quality: "hd", URL: "https://cdn.example.com/a.mp4"}},
	})}
	r := newRouter(d, &fakeChat{})

	code, out := serve(t, r, http.MethodGet, "/download/Instagram?url=https://www.instagram.com/reel/abc", nil)
	if code != http.StatusOK || !out.Status {
		t.Fatalf("expected 200 ok, got %d %+v", code, out)
	}
	if d.platform != "instagram" || d.url != "https://www.instagram.com/reel/abc" {
		t.Fatalf("unexpected fetch %q %q", d.platform, d.url)
	}
	var media integrations.Media
	if errDecode := json.Unmarshal(out.Data, &media); errDecode != nil || len(media.Downloads) != 1 {
		t.Fatalf("unexpected media %+v (%v)", media, errDecode)
	}
}

func TestDownloadDegradedReturnsFallback(t *testing.T) {
	fallback := integrations.FallbackMedia("spotify", "https://open.spotify.com/track/1")
	r := newRouter(&fakeDownloader{out: integrations.Degrade(fallback, "upstream down")}, &fakeChat{})

	code, out := serve(t, r, http.MethodGet, "/download/spotify?url=https://open.spotify.com/track/1", nil)
	if code != http.StatusOK || out.Status {
		t.Fatalf("expected degraded 200, got %d %+v", code, out)
	}
	if len(out.Data) == 0 || string(out.Data) == "null" {
		t.Fatalf("expected fallback data")
	}
}

func TestDownloadValidation(t *testing.T) {
	r := newRouter(&fakeDownloader{}, &fakeChat{})

	code, out := serve(t, r, http.MethodGet, "/download/youtube", nil)
	if code != http.StatusBadRequest || out.Code != "ValidationError" {
		t.Fatalf("expected missing url rejection, got %d %+v", code, out)
	}
	code, out = serve(t, r, http.MethodGet, "/download/youtube?url=ftp://example.com/v", nil)
	if code != http.StatusBadRequest || out.Code != "ValidationError" {
		t.Fatalf("expected scheme rejection, got %d %+v", code, out)
	}
	code, _ = serve(t, r, http.MethodGet, "/download/vimeo?url=https://vimeo.com/1", nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected unsupported platform 404, got %d", code)
	}
}

func TestYouTubeInfoOmitsDownloads(t *testing.T) {
	d := &fakeDownloader{out: integrations.Ok(integrations.Media{
		Title:     "Talk",
		Duration:  90,
		Downloads: []integrations.MediaLink{{Quality: "720p", URL: "https://cdn.example.com/v.mp4"}},
	})}
	r := newRouter(d, &fakeChat{})

	code, out := serve(t, r, http.MethodGet, "/youtube/info?url=https://youtu.be/xyz", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var info map[string]any
	if errDecode := json.Unmarshal(out.Data, &info); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if _, ok := info["downloads"]; ok {
		t.Fatalf("info must not include downloads: %v", info)
	}
	if info["title"] != "Talk" || d.platform != integrations.PlatformYouTube {
		t.Fatalf("unexpected info %v", info)
	}
}

func TestCompleteAndModels(t *testing.T) {
	r := newRouter(&fakeDownloader{}, &fakeChat{out: integrations.Ok(integrations.Completion{Text: "hi there"})})

	code, out := serve(t, r, http.MethodPost, "/ai/gpt5", []byte(`{"prompt":"hello"}`))
	if code != http.StatusOK || !out.Status {
		t.Fatalf("expected 200, got %d %+v", code, out)
	}
	code, out = serve(t, r, http.MethodPost, "/ai/gpt5", []byte(`{"prompt":"   "}`))
	if code != http.StatusBadRequest || out.Code != "ValidationError" {
		t.Fatalf("expected blank prompt rejection, got %d %+v", code, out)
	}
	code, _ = serve(t, r, http.MethodPost, "/ai/llama", []byte(`{"prompt":"hello"}`))
	if code != http.StatusNotFound {
		t.Fatalf("expected unknown model 404, got %d", code)
	}

	code, out = serve(t, r, http.MethodGet, "/ai/models", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var models struct {
		Total int `json:"total"`
	}
	if errDecode := json.Unmarshal(out.Data, &models); errDecode != nil || models.Total != len(integrations.Catalog) {
		t.Fatalf("unexpected models %+v (%v)", models, errDecode)
	}
}

func TestQuotaRequiresAPIKeyPrincipal(t *testing.T) {
	r := newRouter(&fakeDownloader{}, &fakeChat{})
	code, out := serve(t, r, http.MethodGet, "/me/quota", nil)
	if code != http.StatusUnauthorized || out.Code != "MissingCredential" {
		t.Fatalf("expected 401, got %d %+v", code, out)
	}
}
