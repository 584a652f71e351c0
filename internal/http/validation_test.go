package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/gin-gonic/gin"
)

func strconvInt(v int64) string { return strconv.FormatInt(v, 10) }

type signupBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Plan     string `json:"plan" binding:"omitempty,oneof=free pro"`
}

func TestBindJSONReportsFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := NewResponder(config.ResponseConfig{Creator: "tester"}, fixedClock)
	router := gin.New()
	router.POST("/signup", func(c *gin.Context) {
		var body signupBody
		if !BindJSON(c, resp, &body) {
			return
		}
		resp.OK(c, http.StatusCreated, "created", nil)
	})

	post := func(body string) (*httptest.ResponseRecorder, Envelope) {
		req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		var env Envelope
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
		return rec, env
	}

	rec, env := post(`{"email":"nope","password":"short","plan":"gold"}`)
	if rec.Code != http.StatusBadRequest || env.Code != string(access.ValidationError) {
		t.Fatalf("expected 400 ValidationError, got %d %+v", rec.Code, env)
	}
	want := map[string]string{
		"email":    "must be a valid email address",
		"password": "must be at least 8 characters",
		"plan":     "must be one of: free, pro",
	}
	for field, msg := range want {
		if env.Errors[field] != msg {
			t.Fatalf("field %s: expected %q, got %q", field, msg, env.Errors[field])
		}
	}

	rec, env = post(`{`)
	if rec.Code != http.StatusBadRequest || env.Message != "invalid JSON body" {
		t.Fatalf("expected malformed body error, got %d %+v", rec.Code, env)
	}

	if rec, _ = post(`{"email":"a@b.co","password":"long-enough"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}
