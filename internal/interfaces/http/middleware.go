package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Identity headers set by the upstream gateway
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const actorKey = "ringi.actor"

// identityMiddleware resolves the caller from the identity headers and
// rejects requests without a valid pair
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := domainwf.ParseTenantID(c.GetHeader(HeaderTenantID))
		if err != nil {
			abortUnauthorized(c, "missing or invalid "+HeaderTenantID+" header")
			return
		}
		user, err := domainwf.ParseUserID(c.GetHeader(HeaderUserID))
		if err != nil {
			abortUnauthorized(c, "missing or invalid "+HeaderUserID+" header")
			return
		}
		c.Set(actorKey, workflow.Actor{TenantID: tenant, UserID: user})
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   msg,
	})
}

// actorFrom returns the caller stored by identityMiddleware
func actorFrom(c *gin.Context) workflow.Actor {
	actor, _ := c.MustGet(actorKey).(workflow.Actor)
	return actor
}
