package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
)

// Handler 处理 GET /health。
// Redis降级或重建中返回503，负载均衡器据此摘除实例。
func Handler(c *gin.Context) {
	switch database.HealthStateNow() {
	case database.StateHealthy:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case database.StateRebuilding:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "rebuilding"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
	}
}
