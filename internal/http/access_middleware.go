package http

import (
	"net/http"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/gin-gonic/gin"
)

// gin context keys set by GateMiddleware.
const (
	principalKey = "principal"
	userIDKey    = "userID"
)

// GateMiddleware authenticates the request under policy and stores the
// principal in the gin context and the request context.
func GateMiddleware(gate *access.Gate, policy access.Policy, resp *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, errAuth := gate.Authenticate(c.Request.Context(), c.Request, policy)
		if errAuth != nil {
			resp.AccessError(c, errAuth)
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), principal))
		if principal.User != nil {
			c.Set(userIDKey, principal.User.ID)
		}
		if principal.Quota != nil {
			setRateLimitHeaders(c, principal.Quota)
		}
		c.Next()
	}
}

// RequirePlan rejects principals whose user is not on plan.
func RequirePlan(plan string, resp *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := PrincipalFrom(c).User
		if user == nil || user.Plan != plan {
			resp.Error(c, http.StatusForbidden, "Forbidden", "insufficient permissions")
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal set by GateMiddleware, or
// access.Anonymous.
func PrincipalFrom(c *gin.Context) *access.Principal {
	if c == nil {
		return access.Anonymous
	}
	if v, ok := c.Get(principalKey); ok {
		if p, okPrincipal := v.(*access.Principal); okPrincipal && p != nil {
			return p
		}
	}
	return access.Anonymous
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	return PrincipalFrom(c).User
}

// UserID extracts the authenticated user ID from the gin context.
func UserID(c *gin.Context) uint64 {
	val, exists := c.Get(userIDKey)
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}
