package integrations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestDownloaderReshapesUpstreamJSON(t *testing.T) {
	var gotPath, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"caption":"Sunset","owner":{"username":"ana"},"duration":42,
			"medias":[{"resolution":"720p","url":"https://cdn/a.mp4"},{"url":""}]}}`))
	}))
	defer srv.Close()

	d := NewHTTPDownloader(config.IntegrationsConfig{DownloaderBaseURL: srv.URL + "/", Timeout: time.Second})
	out := d.Fetch(context.Background(), PlatformInstagram, "https://instagram.com/p/xyz")

	if out.Degraded {
		t.Fatalf("unexpected degrade: %s", out.Reason)
	}
	if gotPath != "/instagram" || gotURL != "https://instagram.com/p/xyz" {
		t.Fatalf("unexpected upstream call %s ?url=%s", gotPath, gotURL)
	}
	m := out.Value
	if m.Title != "Sunset" || m.Author != "ana" || m.Duration != 42 || m.Thumbnail != "" {
		t.Fatalf("unexpected media: %+v", m)
	}
	if len(m.Downloads) != 1 || m.Downloads[0].Quality != "720p" {
		t.Fatalf("unexpected downloads: %+v", m.Downloads)
	}
}

func TestDownloaderDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/youtube") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"title":"no links"}`))
	}))
	defer srv.Close()

	cases := []struct {
		name     string
		baseURL  string
		platform string
		reason   string
	}{
		{"not configured", "", PlatformSpotify, "not configured"},
		{"upstream status", srv.URL, PlatformYouTube, "status 502"},
		{"no links", srv.URL, PlatformThreads, "no downloadable media"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewHTTPDownloader(config.IntegrationsConfig{DownloaderBaseURL: tc.baseURL, Timeout: time.Second})
			out := d.Fetch(context.Background(), tc.platform, "https://example.com/m")
			if !out.Degraded || !strings.Contains(out.Reason, tc.reason) {
				t.Fatalf("expected degrade containing %q, got %+v", tc.reason, out)
			}
			if out.Value.Platform != tc.platform || len(out.Value.Downloads) == 0 {
				t.Fatalf("expected demo fallback, got %+v", out.Value)
			}
		})
	}
}

func TestValidateMediaURL(t *testing.T) {
	for _, ok := range []string{"https://youtube.com/watch?v=1", "http://x.io/a"} {
		if errValidate := ValidateMediaURL(ok); errValidate != nil {
			t.Fatalf("%s: %v", ok, errValidate)
		}
	}
	for _, bad := range []string{"", "youtube.com/watch", "ftp://x.io/a", "::"} {
		if ValidateMediaURL(bad) == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
	if SupportedPlatform("tiktok") || !SupportedPlatform(PlatformFacebook) {
		t.Fatalf("unexpected platform support")
	}
}

func TestChatCompletes(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" hi there "}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	chat := NewHTTPChat(config.IntegrationsConfig{ChatBaseURL: srv.URL, ChatAPIKey: "sk-test", Timeout: time.Second})
	out := chat.Complete(context.Background(), "gpt5", "hello")
	if out.Degraded {
		t.Fatalf("unexpected degrade: %s", out.Reason)
	}
	if out.Value.Text != "hi there" || out.Value.PromptTokens != 3 || out.Value.CompletionTokens != 2 {
		t.Fatalf("unexpected completion: %+v", out.Value)
	}
	if gotAuth != "Bearer sk-test" || !strings.Contains(gotBody, `"model":"gpt-5"`) {
		t.Fatalf("unexpected upstream request: %s %s", gotAuth, gotBody)
	}
	if len(chat.Models()) != 3 {
		t.Fatalf("expected three models")
	}
}

func TestChatDegradesToCannedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	chat := NewHTTPChat(config.IntegrationsConfig{ChatBaseURL: srv.URL, Timeout: time.Second})
	out := chat.Complete(context.Background(), "deepseek", "hello")
	if !out.Degraded || out.Value.Text != FallbackCompletion("deepseek").Text {
		t.Fatalf("expected canned fallback, got %+v", out)
	}

	out = chat.Complete(context.Background(), "llama", "hello")
	if !out.Degraded || out.Reason != ErrUnknownModel.Error() {
		t.Fatalf("expected unknown model degrade, got %+v", out)
	}
}

func stripeCfg() config.StripeConfig {
	return config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://app/success",
		CancelURL:     "https://app/cancel",
		PlanPrices:    map[string]string{"pro": "price_pro"},
	}
}

func TestCreateCheckout(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	p := NewStripePayments(stripeCfg()).WithCheckoutCreator(func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil
	})
	user := &models.User{ID: 7, Email: "buyer@example.com"}

	out := p.CreateCheckout(context.Background(), user, "pro")
	if out.Degraded || out.Value.URL != "https://checkout/cs_1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if captured.Metadata["user_id"] != "7" || captured.Metadata["plan"] != "pro" {
		t.Fatalf("unexpected metadata %v", captured.Metadata)
	}
	if *captured.LineItems[0].Price != "price_pro" || *captured.ClientReferenceID != "7" {
		t.Fatalf("unexpected params %+v", captured)
	}

	if out = p.CreateCheckout(context.Background(), user, "basic"); !out.Degraded {
		t.Fatalf("expected degrade for unpriced plan")
	}

	failing := NewStripePayments(stripeCfg()).WithCheckoutCreator(func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("card network down")
	})
	if out = failing.CreateCheckout(context.Background(), user, "pro"); !out.Degraded || !strings.Contains(out.Reason, "card network down") {
		t.Fatalf("expected degrade on provider error, got %+v", out)
	}

	disabled := NewStripePayments(config.StripeConfig{})
	if out = disabled.CreateCheckout(context.Background(), user, "pro"); !out.Degraded {
		t.Fatalf("expected degrade when payments are disabled")
	}
}

func signedEvent(t *testing.T, secret, body string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhook(t *testing.T) {
	p := NewStripePayments(stripeCfg())
	paid := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid","client_reference_id":"7","metadata":{"user_id":"7","plan":"pro"}}}}`

	change, errParse := p.ParseWebhook([]byte(paid), signedEvent(t, "whsec_test", paid))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if change == nil || change.UserID != 7 || change.Plan != "pro" || change.SessionID != "cs_1" {
		t.Fatalf("unexpected change %+v", change)
	}

	if _, errParse = p.ParseWebhook([]byte(paid), signedEvent(t, "whsec_other", paid)); !errors.Is(errParse, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", errParse)
	}

	unpaid := strings.Replace(paid, `"paid"`, `"unpaid"`, 1)
	if change, errParse = p.ParseWebhook([]byte(unpaid), signedEvent(t, "whsec_test", unpaid)); errParse != nil || change != nil {
		t.Fatalf("unpaid sessions are ignored, got %+v / %v", change, errParse)
	}

	other := `{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`
	if change, errParse = p.ParseWebhook([]byte(other), signedEvent(t, "whsec_test", other)); errParse != nil || change != nil {
		t.Fatalf("other events are ignored, got %+v / %v", change, errParse)
	}

	adminPlan := strings.Replace(paid, `"plan":"pro"`, `"plan":"admin"`, 1)
	if _, errParse = p.ParseWebhook([]byte(adminPlan), signedEvent(t, "whsec_test", adminPlan)); !errors.Is(errParse, ErrMalformedEvent) {
		t.Fatalf("admin plan cannot be bought, got %v", errParse)
	}
}
