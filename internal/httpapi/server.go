// Package httpapi exposes the detection pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/dupscan/internal/config"
	"horse.fit/dupscan/internal/detect"
)

// Server hosts the detection API.
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	service *detect.Service
	echo    *echo.Echo
}

// New wires routes and middleware around the detection service.
func New(cfg *config.Config, service *detect.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		service: service,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.health)
	api.POST("/embed", s.embed)
	api.POST("/fingerprint", s.fingerprint)

	// Detection fans out many repository searches per request, so it gets
	// a per-client rate limit.
	detectGroup := api.Group("/detect", middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(cfg.DetectRatePerMinute) / 60.0),
			Burst:     cfg.DetectRateBurst,
			ExpiresIn: 3 * time.Minute,
		}),
		ErrorHandler: func(c echo.Context, err error) error {
			return fail(c, http.StatusForbidden, map[string]string{"reason": "rate limit identity error"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return fail(c, http.StatusTooManyRequests, map[string]string{"reason": "rate limit exceeded"})
		},
	}))
	detectGroup.POST("/:method/by-node/:nodeID", s.detectByNode)
	detectGroup.POST("/:method/by-metadata", s.detectByMetadata)

	s.echo = e
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		// Detection runs can spend a while in repository searches.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return <-errCh
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := fmt.Sprintf("%v", httpErr.Message)
		if httpErr.Code >= http.StatusInternalServerError {
			_ = internalError(c, message)
			return
		}
		_ = fail(c, httpErr.Code, map[string]string{"reason": message})
		return
	}

	s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled error")
	_ = internalError(c, "internal server error")
}
