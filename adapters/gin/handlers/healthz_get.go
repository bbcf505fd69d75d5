package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oradesk/bridgekit/core"
)

// HandleHealthzGET reports liveness; unhealthy means the store is
// unreachable, which the deploy surface treats as 503.
func HandleHealthzGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Healthy(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
