// Package ginutil holds shared response and rate-limit helpers for the
// bridge's gin handlers.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/core"
)

// RateLimiter matches the bridge adapter's internal interface; both the
// redis and memory limiters implement it.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// Rate-limit bucket names, one per bridge route.
const (
	RLLicenseValidate  = "bridge_license_validate"
	RLDeviceList       = "bridge_device_list"
	RLDeviceDeactivate = "bridge_device_deactivate"
)

// AllowNamed checks the bucket for this request's client identity: the
// license key when present (one budget per license), otherwise the IP.
// A limiter failure fails open; throttling must never take the bridge down.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.GetHeader("X-License-Key")
	if key == "" {
		key = c.ClientIP()
	}
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func ServerErr(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msg})
}

// Fail maps any error to the bridge taxonomy: typed core errors keep their
// status and message; anything else becomes a generic 503 so internals
// never leak to clients.
func Fail(c *gin.Context, err error) {
	e := core.AsError(err)
	c.AbortWithStatusJSON(e.HTTPStatus(), gin.H{"error": e.Message})
}
