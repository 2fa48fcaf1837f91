// Package router assembles the gin engine and the budget API routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"github.com/healthbudget/backend/internal/interfaces/http/dto"
	"github.com/healthbudget/backend/internal/interfaces/http/handler"
	"github.com/healthbudget/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// APIPrefix is where every budget resource is mounted
const APIPrefix = "/api/v1"

// Handlers bundles the API handlers mounted by New
type Handlers struct {
	Plan      *handler.PlanHandler
	Execution *handler.ExecutionHandler
	Template  *handler.TemplateHandler
	Reference *handler.ReferenceHandler
	Health    *handler.HealthHandler
}

// Config holds engine-level settings
type Config struct {
	ServiceName    string
	CORSOrigins    []string
	TrustedProxies []string
	MaxBodySize    int64
	Tracing        bool
	MeterProvider  *telemetry.MeterProvider
}

type route struct {
	method string
	path   string
	handle gin.HandlerFunc
}

// resource is one URL prefix under APIPrefix with its own middleware
type resource struct {
	prefix string
	use    []gin.HandlerFunc
	routes []route
}

func (res resource) mount(api *gin.RouterGroup) {
	group := api.Group(res.prefix, res.use...)
	for _, rt := range res.routes {
		group.Handle(rt.method, rt.path, rt.handle)
	}
}

// New builds the gin engine with middleware, /health and the API routes
func New(cfg Config, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	bodyLimit := cfg.MaxBodySize
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultBodyLimit
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: cfg.MeterProvider, Enabled: true}),
		middleware.Secure(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.BodyLimit(bodyLimit),
	)

	engine.NoRoute(errorRoute(http.StatusNotFound, dto.ErrCodeRouteNotFound, "route not found"))
	engine.NoMethod(errorRoute(http.StatusMethodNotAllowed, dto.ErrCodeMethodNotAllow, "method not allowed"))

	engine.GET("/health", h.Health.Health)

	api := engine.Group(APIPrefix)
	for _, res := range budgetResources(h) {
		res.mount(api)
	}
	return engine, nil
}

func errorRoute(status int, code, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(status, dto.NewErrorResponse(code, msg, middleware.GetRequestID(c)))
	}
}

func budgetResources(h Handlers) []resource {
	return []resource{
		{prefix: "/plans", routes: []route{
			{http.MethodPost, "", h.Plan.Create},
			{http.MethodGet, "", h.Plan.List},
			{http.MethodGet, "/:id", h.Plan.Get},
			{http.MethodDelete, "/:id", h.Plan.Delete},
			{http.MethodPost, "/:id/activities", h.Plan.AddActivity},
			{http.MethodPut, "/:id/activities/:activityId", h.Plan.UpdateActivity},
			{http.MethodDelete, "/:id/activities/:activityId", h.Plan.RemoveActivity},
			{http.MethodPost, "/:id/submit", h.Plan.Submit},
			{http.MethodPost, "/:id/approve", h.Plan.Approve},
			{http.MethodPost, "/:id/reject", h.Plan.Reject},
			{http.MethodPost, "/:id/execution", h.Execution.CreateFromPlan},
		}},
		{prefix: "/executions", routes: []route{
			{http.MethodGet, "", h.Execution.List},
			{http.MethodGet, "/:id", h.Execution.GetTree},
			{http.MethodGet, "/:id/balance", h.Execution.GetBalance},
			{http.MethodPut, "/:id/items/:itemId", h.Execution.UpdateLeaf},
			{http.MethodPost, "/:id/submit", h.Execution.Submit},
			{http.MethodPost, "/:id/approve", h.Execution.Approve},
			{http.MethodPost, "/:id/reject", h.Execution.Reject},
		}},
		{prefix: "/programs", routes: []route{
			{http.MethodGet, "/:id/execution-template", h.Template.Get},
			{http.MethodPut, "/:id/execution-template", h.Template.Put},
		}},
		{prefix: "/reference", routes: []route{
			{http.MethodGet, "/facilities", h.Reference.ListFacilities},
			{http.MethodGet, "/programs", h.Reference.ListPrograms},
			{http.MethodGet, "/fiscal-years", h.Reference.ListFiscalYears},
		}},
	}
}
