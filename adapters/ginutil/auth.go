package ginutil

import (
	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/core"
)

// AuthContextKey is where the credential middleware stores the resolved
// core.AuthContext on the gin context.
const AuthContextKey = "bridge.auth"

// GetAuthContext returns the request's resolved AuthContext, if the
// credential middleware ran.
func GetAuthContext(c *gin.Context) (core.AuthContext, bool) {
	v, ok := c.Get(AuthContextKey)
	if !ok {
		return core.AuthContext{}, false
	}
	actx, ok := v.(core.AuthContext)
	return actx, ok
}
