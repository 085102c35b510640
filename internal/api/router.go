package api

import (
	"log/slog"
	"net/http"

	"github.com/arnabghosh/compute-matcher/internal/api/handlers"
	"github.com/arnabghosh/compute-matcher/internal/api/middleware"
	"github.com/arnabghosh/compute-matcher/internal/api/stream"
	"github.com/arnabghosh/compute-matcher/internal/capability"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the collaborators served by the API. Demands and Resources are
// required; the rest disable their routes when nil.
type Deps struct {
	Demands   storage.DemandRepository
	Resources storage.ResourceRepository
	Lifecycle handlers.DemandLifecycle
	Verifier  capability.Verifier
	Reports   handlers.ReportStore
	Runner    handlers.CycleRunner
	Hub       *stream.Hub
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

// Router manages API routing and handlers
type Router struct {
	engine          *gin.Engine
	deps            Deps
	demandHandler   *handlers.DemandHandler
	resourceHandler *handlers.ResourceHandler
	cycleHandler    *handlers.CycleHandler
}

// NewRouter creates a new API router with all handlers initialized
func NewRouter(deps Deps) *Router {
	router := &Router{
		engine:          gin.New(),
		deps:            deps,
		demandHandler:   handlers.NewDemandHandler(deps.Demands, deps.Lifecycle),
		resourceHandler: handlers.NewResourceHandler(deps.Resources, deps.Verifier),
		cycleHandler:    handlers.NewCycleHandler(deps.Reports, deps.Runner),
	}

	router.setupMiddleware()
	router.setupRoutes()

	return router
}

// setupMiddleware configures global middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.LoggingMiddleware(r.deps.Logger))
	r.engine.Use(middleware.ErrorHandlerMiddleware(r.deps.Logger))

	if r.deps.Registry != nil {
		r.engine.Use(middleware.NewHTTPMetrics(r.deps.Registry).Middleware())
	}

	// Recovery middleware (catch panics)
	r.engine.Use(gin.Recovery())
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health)

	// Swagger UI - serves OpenAPI documentation at /swagger/index.html
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if r.deps.Registry != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Registry, promhttp.HandlerOpts{})))
	}

	if r.deps.Hub != nil {
		r.engine.GET("/ws/cycles", r.deps.Hub.ServeWS)
	}

	v1 := r.engine.Group("/api/v1")
	{
		demands := v1.Group("/demands")
		{
			demands.GET("", r.demandHandler.ListDemands)
			demands.POST("", r.demandHandler.CreateDemand)
			demands.GET("/:id", r.demandHandler.GetDemand)
			demands.POST("/:id/cancel", r.demandHandler.CancelDemand)
			demands.POST("/:id/start", r.demandHandler.StartDemand)
			demands.POST("/:id/complete", r.demandHandler.CompleteDemand)
		}

		resources := v1.Group("/resources")
		{
			resources.GET("", r.resourceHandler.ListResources)
			resources.POST("", r.resourceHandler.RegisterResource)
			resources.GET("/:id", r.resourceHandler.GetResource)
			resources.PATCH("/:id", r.resourceHandler.UpdateResource)
			resources.POST("/:id/deactivate", r.resourceHandler.DeactivateResource)
			resources.POST("/:id/verify", r.resourceHandler.VerifyResource)
		}

		v1.GET("/cycles", r.cycleHandler.ListCycles)
		v1.POST("/cycles/run", r.cycleHandler.RunCycle)
		v1.GET("/cycles/:id", r.cycleHandler.GetCycle)
		v1.GET("/matches/:demand_id", r.cycleHandler.GetMatch)
		v1.GET("/scheduler/stats", r.cycleHandler.SchedulerStats)
	}
}

// health godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (r *Router) health(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{
		"status":    "healthy",
		"demands":   r.deps.Demands.Count(ctx),
		"resources": r.deps.Resources.Count(ctx),
	}
	if r.deps.Hub != nil {
		body["subscribers"] = r.deps.Hub.Stats().Clients
	}
	c.JSON(http.StatusOK, body)
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
