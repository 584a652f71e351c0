package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db   *gorm.DB
	resp *Responder
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB, resp *Responder) *HealthHandler {
	return &HealthHandler{db: db, resp: resp}
}

// Healthz checks database connectivity.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		h.resp.Error(c, http.StatusServiceUnavailable, "Unavailable", "database unavailable")
		return
	}
	if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
		h.resp.Error(c, http.StatusServiceUnavailable, "Unavailable", "database unavailable")
		return
	}
	h.resp.OK(c, http.StatusOK, "ok", gin.H{"database": "ok"})
}
