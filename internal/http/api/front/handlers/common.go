package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/gin-gonic/gin"
)

// getUserID extracts the user ID from gin context, writing a 401 when the
// request carries no authenticated user.
func getUserID(c *gin.Context, resp *gatewayhttp.Responder) (uint64, bool) {
	userID := gatewayhttp.UserID(c)
	if userID == 0 {
		resp.Error(c, http.StatusUnauthorized, string(access.MissingCredential), access.MissingCredential.Message())
		return 0, false
	}
	return userID, true
}

// parseIDParam reads the :id path parameter.
func parseIDParam(c *gin.Context, resp *gatewayhttp.Responder) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		gatewayhttp.ValidationFailed(c, resp, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// serializeUser converts a user to its API representation.
func serializeUser(user *models.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"plan":        user.Plan,
		"active":      user.Active,
		"verified":    user.Verified,
		"mfa_enabled": user.MFAEnabled(),
		"created_at":  user.CreatedAt,
		"updated_at":  user.UpdatedAt,
	}
}

// maskKey hides all but the ends of an API key.
func maskKey(key string) string {
	if len(key) < 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// nowUTC returns the handler clock in UTC.
func nowUTC(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
