package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
)

// HandleLicenseValidatePOST runs the validation pipeline. The body is
// optional: validation-only calls send none and get metadata defaults.
func HandleLicenseValidatePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLLicenseValidate) {
			ginutil.TooMany(c)
			return
		}
		actx, ok := ginutil.GetAuthContext(c)
		if !ok {
			ginutil.Fail(c, core.ErrAuthRequired)
			return
		}

		var meta *core.DeviceMetadata
		if c.Request.ContentLength > 0 {
			var m core.DeviceMetadata
			if err := c.ShouldBindJSON(&m); err != nil {
				ginutil.BadRequest(c, "malformed device metadata")
				return
			}
			meta = &m
		}

		verdict, err := svc.Validate(c.Request.Context(), actx, meta)
		if err != nil {
			ginutil.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, verdict)
	}
}
