package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
)

// HandleDevicesGET lists the license's activations, most recently seen
// first, so the client can render a "deactivate a device" picker.
func HandleDevicesGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLDeviceList) {
			ginutil.TooMany(c)
			return
		}
		actx, ok := ginutil.GetAuthContext(c)
		if !ok {
			ginutil.Fail(c, core.ErrAuthRequired)
			return
		}
		devices, err := svc.ListDevices(c.Request.Context(), actx)
		if err != nil {
			ginutil.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices})
	}
}
