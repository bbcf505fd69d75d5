package authgin

import (
	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/adapters/gin/handlers"
	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
)

// RegisterBridgeAPI mounts the bridge routes. Health is unauthenticated;
// everything under /bridge goes through credential resolution first.
func RegisterBridgeAPI(r *gin.Engine, svc *core.Service, rl ginutil.RateLimiter) {
	r.GET("/healthz", handlers.HandleHealthzGET(svc))

	bridge := r.Group("/bridge")
	bridge.Use(AuthRequired(svc))
	{
		bridge.POST("/license/validate", handlers.HandleLicenseValidatePOST(svc, rl))
		bridge.GET("/devices", handlers.HandleDevicesGET(svc, rl))
		bridge.POST("/devices/:device_id/deactivate", handlers.HandleDeviceDeactivatePOST(svc, rl))
	}
}
