// Package integrations holds the thin clients for the third-party services
// the gateway re-exports. Upstream failures never surface as errors to the
// handlers: they come back as a degraded Outcome carrying a fallback value.
package integrations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apigate-dev/restgateway/internal/metrics"
)

// maxUpstreamBody bounds how much of an upstream response is read.
const maxUpstreamBody = 4 << 20

// Outcome is an upstream result. When Degraded is true, Value holds the
// fallback and Reason says why the upstream could not be used.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

// Ok wraps a successful upstream value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Degrade wraps a fallback value.
func Degrade[T any](fallback T, reason string) Outcome[T] {
	return Outcome[T]{Value: fallback, Degraded: true, Reason: reason}
}

func observe[T any](integration string, out Outcome[T]) Outcome[T] {
	result := "ok"
	if out.Degraded {
		result = "degraded"
	}
	metrics.IntegrationOutcomes.WithLabelValues(integration, result).Inc()
	return out
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doRequest sends req and returns the body of a 2xx response.
func doRequest(client *http.Client, req *http.Request) (body []byte, err error) {
	resp, errDo := client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("upstream request: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil && err == nil {
			err = fmt.Errorf("close upstream body: %w", errClose)
		}
	}()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if errRead != nil {
		return nil, fmt.Errorf("read upstream body: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return body, nil
}

func withTimeout(ctx context.Context, client *http.Client) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, client.Timeout)
}
