package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(Handler()))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/:id", "200"))
	for _, id := range []string{"1", "2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/:id", "200"))
	if after-before != 2 {
		t.Fatalf("expected 2 counted requests, got %v", after-before)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "gateway_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}
