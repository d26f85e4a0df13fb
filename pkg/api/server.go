// Package api exposes the HTTP surface: webhook ingestion, flow
// authoring, the node-type catalog, and health.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/queue"
	"github.com/chatflow-io/chatflow/pkg/services"
)

// SchedulerStatus is the subset of the schedulers the health endpoint
// inspects.
type SchedulerStatus interface {
	Running() bool
}

// Server wires services into HTTP handlers.
type Server struct {
	flows      *services.FlowService
	webhooks   *services.WebhookService
	details    *services.NodeDetailService
	store      database.Store
	renderPool *queue.WorkerPool
	scheduler  SchedulerStatus
	logger     *slog.Logger
}

// NewServer creates the API server. Services are required; renderPool and
// scheduler may be nil (their health checks are skipped).
func NewServer(
	flows *services.FlowService,
	webhooks *services.WebhookService,
	details *services.NodeDetailService,
	store database.Store,
	renderPool *queue.WorkerPool,
	scheduler SchedulerStatus,
) *Server {
	if flows == nil || webhooks == nil || details == nil {
		panic("api: services are required")
	}
	if store == nil {
		panic("api: store is required")
	}
	return &Server{
		flows:      flows,
		webhooks:   webhooks,
		details:    details,
		store:      store,
		renderPool: renderPool,
		scheduler:  scheduler,
		logger:     slog.Default().With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger), securityHeaders())

	router.GET("/health", s.healthHandler)
	router.POST("/webhook/message", s.webhookMessageHandler)

	flow := router.Group("/flow", requireUser())
	{
		flow.GET("/list", s.listFlowsHandler)
		flow.GET("/detail/:flow_id", s.flowDetailHandler)
		flow.POST("", s.createFlowHandler)
		flow.PUT("/:flow_id", s.updateFlowHandler)
		flow.POST("/status/:flow_id", s.flowStatusHandler)
		flow.DELETE("/:flow_id", s.deleteFlowHandler)
	}

	details := router.Group("/node-details")
	{
		details.GET("", s.listNodeDetailsHandler)
		details.GET("/category/:category", s.nodeDetailsByCategoryHandler)
		details.POST("", requireUser(), s.createNodeDetailHandler)
	}

	return router
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
func (s *Server) NewHTTPServer(addr string, debug bool) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(debug),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
