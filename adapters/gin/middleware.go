// Package authgin adapts the bridge core to gin: credential middleware,
// route registration, and the request handlers under handlers/.
package authgin

import (
	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
)

// AuthRequired resolves the request's credential through the core's fixed
// scheme precedence and attaches an immutable AuthContext for handlers
// (read back via ginutil.GetAuthContext). Resolution failures abort before
// any handler runs.
func AuthRequired(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := svc.ResolveCredential(c.Request.Context(), core.RequestHeaders{
			Authorization: c.GetHeader("Authorization"),
			LicenseKey:    c.GetHeader("X-License-Key"),
			DeviceID:      c.GetHeader("X-Device-ID"),
		})
		if err != nil {
			ginutil.Fail(c, err)
			return
		}
		c.Set(ginutil.AuthContextKey, core.AuthContext{
			Credential: cred,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		c.Next()
	}
}
