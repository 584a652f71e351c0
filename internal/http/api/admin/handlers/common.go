package handlers

import (
	"strconv"
	"time"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/gin-gonic/gin"
)

// pageQuery defines paging parameters for admin lists.
type pageQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

func parseIDParam(c *gin.Context, resp *gatewayhttp.Responder) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		gatewayhttp.ValidationFailed(c, resp, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func serializeUser(u *models.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"plan":        u.Plan,
		"active":      u.Active,
		"mfa_enabled": u.MFAEnabled(),
		"created_at":  u.CreatedAt,
		"updated_at":  u.UpdatedAt,
	}
}

func serializeAPIKey(k *models.APIKey, now time.Time) gin.H {
	d := quota.Snapshot(k, now)
	return gin.H{
		"id":           k.ID,
		"user_id":      k.UserID,
		"name":         k.Name,
		"active":       k.Active,
		"status":       k.Status(now),
		"daily_limit":  d.Limit,
		"used_today":   d.Used,
		"remaining":    d.Remaining,
		"reset_date":   d.ResetDate,
		"expires_at":   k.ExpiresAt,
		"revoked_at":   k.RevokedAt,
		"last_used_at": k.LastUsedAt,
		"created_at":   k.CreatedAt,
	}
}
