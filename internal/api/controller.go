// Package api exposes the filter registry of a running process over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
	"github.com/tphakala/scopelog/internal/observability"
)

const componentAPI = "api"

// Controller serves the admin endpoints for one registry.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	reg       *logger.Registry
	metrics   *observability.Metrics
	log       *logger.Dispatcher
	startTime time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics serves m on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger logs rule changes and failed requests through d.
func WithLogger(d *logger.Dispatcher) Option {
	return func(c *Controller) { c.log = d }
}

// New registers the admin routes on e.
func New(e *echo.Echo, reg *logger.Registry, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		reg:       reg,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.Group.GET("/rules", c.ListRules)
	c.Group.POST("/rules", c.CreateRule)
	c.Group.DELETE("/rules", c.DeleteAllRules)
	c.Group.DELETE("/rules/:id", c.DeleteRule)

	c.Group.GET("/level", c.GetLevel)
	c.Group.PUT("/level", c.SetLevel)

	c.Group.GET("/resolve", c.Resolve)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// ErrorResponse is the body of every failed request. Field and Value name
// the rejected setting when there is one.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
	Code  int    `json:"code"`
}

// HandleError writes err as an ErrorResponse. Configuration errors are
// reported as 400 regardless of code.
func (c *Controller) HandleError(ctx echo.Context, err error, code int) error {
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if field, value, ok := errors.Setting(err); ok {
		resp.Field, resp.Value = field, value
	}
	if errors.IsConfiguration(err) {
		resp.Code = http.StatusBadRequest
	}

	c.logEvent(ctx.Request().Context(), logger.LevelWarn, "request failed", logger.String("method", ctx.Request().Method),
		logger.String("path", ctx.Path()), logger.Int("status", resp.Code), logger.Err(err))
	return ctx.JSON(resp.Code, resp)
}

// logEvent writes an operational record attributed to its caller when a
// dispatcher is configured.
func (c *Controller) logEvent(ctx context.Context, lvl logger.Level, msg string, fields ...logger.Field) {
	if c.log == nil {
		return
	}
	c.log.LogAt(ctx, lvl, logger.Caller(1), logger.Msg(msg), fields...)
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status     string `json:"status"`
	Rules      int    `json:"rules"`
	Generation uint64 `json:"generation"`
	Uptime     string `json:"uptime"`
}

// HealthCheck reports that the process is serving.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Rules:      len(c.reg.Rules()),
		Generation: c.reg.Generation(),
		Uptime:     time.Since(c.startTime).Truncate(time.Second).String(),
	})
}
