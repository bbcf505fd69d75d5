package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
)

// HandleDeviceDeactivatePOST frees a quota slot by deactivating one of the
// license's devices. The row survives; the device re-registers through the
// bounded path on its next validation.
func HandleDeviceDeactivatePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLDeviceDeactivate) {
			ginutil.TooMany(c)
			return
		}
		actx, ok := ginutil.GetAuthContext(c)
		if !ok {
			ginutil.Fail(c, core.ErrAuthRequired)
			return
		}
		deviceID := strings.TrimSpace(c.Param("device_id"))
		if deviceID == "" {
			ginutil.BadRequest(c, "missing device id")
			return
		}
		if err := svc.DeactivateDevice(c.Request.Context(), actx, deviceID); err != nil {
			ginutil.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
