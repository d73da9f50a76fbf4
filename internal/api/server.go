package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
	"github.com/tphakala/scopelog/internal/observability"
)

// DefaultListenAddress keeps the admin surface local unless told otherwise.
const DefaultListenAddress = "127.0.0.1:8089"

// Per client limits of the admin API.
const (
	DefaultRateLimit = 20
	DefaultRateBurst = 40
	DefaultMaxConns  = 32
)

const shutdownTimeout = 5 * time.Second

// Server runs the admin API.
type Server struct {
	echo       *echo.Echo
	controller *Controller
	log        *logger.Dispatcher
	maxConns   int
}

type serverConfig struct {
	rate     rate.Limit
	burst    int
	maxConns int
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

// WithRateLimit allows each client r requests per second with bursts of
// burst. A zero r disables limiting.
func WithRateLimit(r rate.Limit, burst int) ServerOption {
	return func(c *serverConfig) {
		c.rate = r
		c.burst = burst
	}
}

// WithMaxConns caps the number of simultaneous connections Serve accepts.
// Zero removes the cap.
func WithMaxConns(n int) ServerOption {
	return func(c *serverConfig) { c.maxConns = n }
}

// NewServer builds the echo instance, its middleware and the routes.
func NewServer(reg *logger.Registry, m *observability.Metrics, d *logger.Dispatcher, opts ...ServerOption) *Server {
	cfg := serverConfig{rate: DefaultRateLimit, burst: DefaultRateBurst, maxConns: DefaultMaxConns}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	if d != nil {
		e.Use(requestLogger(d))
	}
	if cfg.rate > 0 {
		e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:  cfg.rate,
			Burst: cfg.burst,
		})))
	}

	copts := []Option{WithLogger(d)}
	if m != nil {
		copts = append(copts, WithMetrics(m))
	}
	return &Server{
		echo:       e,
		controller: New(e, reg, copts...),
		log:        d,
		maxConns:   cfg.maxConns,
	}
}

// requestLogger records each request at debug level.
func requestLogger(d *logger.Dispatcher) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			d.Log(c.Request().Context(), logger.LevelDebug, logger.Msg(v.Method+" "+v.URI),
				logger.Int("status", v.Status), logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID))
			return nil
		},
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	if s.log != nil {
		s.log.Log(ctx, logger.LevelNote, logger.Msg("admin API listening"), logger.String("addr", ln.Addr().String()))
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.New(err).
			Component(componentAPI).
			Category(errors.CategoryConfiguration).
			Setting("listen", addr).
			Build()
	}
	return s.Serve(ctx, ln)
}
