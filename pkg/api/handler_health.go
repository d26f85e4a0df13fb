package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/version"
)

// healthHandler handles GET /health. The database check is authoritative:
// an unreachable store reports 503. Degraded components (render pool,
// scheduler) flip the overall status to degraded but keep 200 so load
// balancers don't cycle the instance for a recoverable condition.
func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]HealthCheck)
	overall := "healthy"
	code := http.StatusOK

	dbStatus, err := database.Health(c.Request.Context(), s.store)
	check := HealthCheck{
		Status:  dbStatus.Status,
		Message: fmt.Sprintf("response time %dms", dbStatus.ResponseTime),
	}
	if err != nil {
		check.Message = err.Error()
		overall = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	checks["database"] = check

	if s.renderPool != nil {
		pool := s.renderPool.Health()
		if pool.IsHealthy {
			checks["render_pool"] = HealthCheck{
				Status:  "healthy",
				Message: fmt.Sprintf("%d workers, %d delivered, %d failed", pool.Workers, pool.Delivered, pool.Failed),
			}
		} else {
			checks["render_pool"] = HealthCheck{Status: "unhealthy", Message: "workers stopped"}
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	if s.scheduler != nil {
		if s.scheduler.Running() {
			checks["delay_scheduler"] = HealthCheck{Status: "healthy"}
		} else {
			checks["delay_scheduler"] = HealthCheck{Status: "unhealthy", Message: "not running"}
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	c.JSON(code, HealthResponse{
		Status:  overall,
		Version: version.Full(),
		Checks:  checks,
	})
}
