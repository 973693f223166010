// Package httpapi exposes the auth service over HTTP/JSON using echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskboard/internal/logging"
	"github.com/dmitrijs2005/taskboard/internal/server/auth"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*models.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, raw string) (*models.TokenPair, error)
	Revoke(ctx context.Context, raw string) error
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// Options are optional collaborators of the HTTP server.
type Options struct {
	// RateLimit wraps the credential endpoints when set.
	RateLimit echo.MiddlewareFunc
	// Health is called by /healthz; a non-nil error yields 503.
	Health func(ctx context.Context) error
}

// Server is the HTTP front of the auth service.
type Server struct {
	e    *echo.Echo
	svc  AuthService
	log  logging.Logger
	opts Options
}

// NewServer builds the echo instance and registers all routes.
func NewServer(svc AuthService, log logging.Logger, opts Options) *Server {
	s := &Server{
		e:    echo.New(),
		svc:  svc,
		log:  log.With("module", "http"),
		opts: opts,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.handleError

	s.e.Use(middleware.RequestID())
	s.e.Use(s.requestLogger())
	s.e.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.health)

	g := s.e.Group("/auth")
	var limited []echo.MiddlewareFunc
	if s.opts.RateLimit != nil {
		limited = append(limited, s.opts.RateLimit)
	}
	g.POST("/register", s.register, limited...)
	g.POST("/login", s.login, limited...)
	g.POST("/refresh", s.refresh, limited...)
	g.POST("/revoke", s.revoke)
	g.GET("/me", s.me, s.bearer)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info(context.Background(), "http server listening", "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"path", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			if v.Status >= http.StatusInternalServerError {
				s.log.Error(ctx, "http request", append(args, "error", v.Error)...)
			} else {
				s.log.Info(ctx, "http request", args...)
			}
			return nil
		},
	})
}
