package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	meetingHandler *Meeting
	healthChecks   map[string]HealthCheck
	gatherer       prometheus.Gatherer
}

// NewRouter creates a new router with all handlers. A nil gatherer disables /metrics.
func NewRouter(cfg *config.Config, meetingHandler *Meeting, healthChecks map[string]HealthCheck, gatherer prometheus.Gatherer) *Router {
	return &Router{
		cfg:            cfg,
		meetingHandler: meetingHandler,
		healthChecks:   healthChecks,
		gatherer:       gatherer,
	}
}

// Setup configures all application routes. Meeting routes are served at the
// root and under /api.
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)
	if rt.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{})))
	}

	rt.setupMeetingRoutes(e.Group(""))
	rt.setupMeetingRoutes(e.Group("/api"))
}

// setupMeetingRoutes configures upload, meeting and search routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	g.POST("/upload", rt.meetingHandler.Upload)
	g.GET("/meetings", rt.meetingHandler.ListMeetings)
	g.GET("/meetings/:id", rt.meetingHandler.GetMeeting)
	g.GET("/meetings/:id/status", rt.meetingHandler.GetStatus)
	g.DELETE("/meetings/:id", rt.meetingHandler.DeleteMeeting)
	g.POST("/search", rt.meetingHandler.Search)
}

// healthCheck reports the state of every dependency; any failure yields 503
func (rt *Router) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(rt.healthChecks))
	for name := range rt.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := rt.healthChecks[name](ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	environment := ""
	if rt.cfg != nil {
		environment = rt.cfg.Server.Environment
	}

	return c.JSON(status, map[string]interface{}{
		"status":      overall,
		"environment": environment,
		"checks":      checks,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
