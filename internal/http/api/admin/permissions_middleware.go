package admin

import (
	"net/http"

	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	permissions "github.com/apigate-dev/restgateway/internal/http/api/admin/permissions"
	"github.com/gin-gonic/gin"
)

// adminPermissionMiddleware rejects admin routes that have no permission
// definition, so a route added without one is never reachable.
func adminPermissionMiddleware(resp *gatewayhttp.Responder) gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			resp.Error(c, http.StatusForbidden, "Forbidden", "permission denied")
			return
		}
		if _, ok := permissionMap[permissions.Key(c.Request.Method, path)]; !ok {
			resp.Error(c, http.StatusForbidden, "Forbidden", "permission denied")
			return
		}
		c.Next()
	}
}
