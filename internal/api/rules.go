package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
)

// RuleRequest is the body of POST /rules.
type RuleRequest struct {
	File  string `json:"file"`
	Func  string `json:"func"`
	Line  string `json:"line"`
	Level string `json:"level"`
}

// RulesResponse lists the registry state.
type RulesResponse struct {
	Default    logger.Level      `json:"default"`
	Rules      []logger.RuleInfo `json:"rules"`
	Generation uint64            `json:"generation"`
}

// CreatedResponse carries the handle of a new rule.
type CreatedResponse struct {
	ID logger.RuleHandle `json:"id"`
}

// LevelRequest is the body of PUT /level and the response of GET /level.
type LevelRequest struct {
	Level string `json:"level"`
}

// ResolveResponse is the threshold in force at a call site.
type ResolveResponse struct {
	File  string       `json:"file"`
	Func  string       `json:"func"`
	Line  int          `json:"line"`
	Level logger.Level `json:"level"`
}

func badRequest(field string, value any, msg string) error {
	return errors.ConfigError(componentAPI, field, value, errors.NewStd(msg))
}

func parseLevelParam(field, value string) (logger.Level, error) {
	lvl, err := logger.ParseLevel(value)
	if err != nil {
		return logger.LevelOff, badRequest(field, value, "unknown level")
	}
	return lvl, nil
}

// ListRules returns the default threshold and the live rules in
// registration order.
func (c *Controller) ListRules(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, RulesResponse{
		Default:    c.reg.Default(),
		Rules:      c.reg.Rules(),
		Generation: c.reg.Generation(),
	})
}

// CreateRule registers a rule. It is the most recent one and therefore wins
// over earlier rules matching the same sites.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var req RuleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.ValidationError("invalid request body"), http.StatusBadRequest)
	}
	lvl, err := parseLevelParam("level", req.Level)
	if err != nil {
		return c.HandleError(ctx, err, http.StatusBadRequest)
	}

	pattern := logger.Pattern{File: req.File, Func: req.Func, Line: req.Line}
	h, err := c.reg.Register(logger.Rule{Pattern: pattern, Threshold: lvl})
	if err != nil {
		return c.HandleError(ctx, err, http.StatusBadRequest)
	}

	c.logEvent(ctx.Request().Context(), logger.LevelNote, "rule added",
		logger.Uint64("id", uint64(h)), logger.String("pattern", pattern.String()), logger.String("level", lvl.String()))
	return ctx.JSON(http.StatusCreated, CreatedResponse{ID: h})
}

// DeleteRule removes one rule by handle.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return c.HandleError(ctx, badRequest("id", ctx.Param("id"), "not a rule id"), http.StatusBadRequest)
	}
	if !c.reg.Unregister(logger.RuleHandle(id)) {
		notFound := errors.New(errors.NewStd("rule not found")).
			Component(componentAPI).
			Category(errors.CategoryNotFound).
			Build()
		return c.HandleError(ctx, notFound, http.StatusNotFound)
	}

	c.logEvent(ctx.Request().Context(), logger.LevelNote, "rule removed", logger.Uint64("id", id))
	return ctx.NoContent(http.StatusNoContent)
}

// DeleteAllRules removes every rule and keeps the default threshold.
func (c *Controller) DeleteAllRules(ctx echo.Context) error {
	n := len(c.reg.Rules())
	c.reg.Reset()
	c.logEvent(ctx.Request().Context(), logger.LevelNote, "rules cleared", logger.Int("count", n))
	return ctx.NoContent(http.StatusNoContent)
}

// GetLevel returns the default threshold.
func (c *Controller) GetLevel(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, LevelRequest{Level: c.reg.Default().String()})
}

// SetLevel changes the default threshold.
func (c *Controller) SetLevel(ctx echo.Context) error {
	var req LevelRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.ValidationError("invalid request body"), http.StatusBadRequest)
	}
	lvl, err := parseLevelParam("level", req.Level)
	if err != nil {
		return c.HandleError(ctx, err, http.StatusBadRequest)
	}

	c.reg.SetDefault(lvl)
	c.logEvent(ctx.Request().Context(), logger.LevelNote, "default level changed", logger.String("level", lvl.String()))
	return ctx.JSON(http.StatusOK, LevelRequest{Level: lvl.String()})
}

// Resolve reports the threshold in force at the site given by the file,
// func and line query parameters.
func (c *Controller) Resolve(ctx echo.Context) error {
	line := 0
	if s := ctx.QueryParam("line"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.HandleError(ctx, badRequest("line", s, "not a line number"), http.StatusBadRequest)
		}
		line = n
	}

	site := logger.NewCallSite(ctx.QueryParam("file"), ctx.QueryParam("func"), line)
	return ctx.JSON(http.StatusOK, ResolveResponse{
		File:  site.File,
		Func:  site.Function,
		Line:  site.Line,
		Level: c.reg.Lookup(site),
	})
}
