package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
	"github.com/vovakirdan/wirechat-lite/internal/config"
	"github.com/vovakirdan/wirechat-lite/internal/core"
	"github.com/vovakirdan/wirechat-lite/internal/metrics"
)

// Server is the HTTP surface: health, metrics, the JSON API and the
// websocket transport.
type Server struct {
	srv *stdhttp.Server
	ws  *WSHandler
	cfg config.Config
	log *zerolog.Logger
}

// NewServer builds the gin router for the JSON API and mounts it next to
// the websocket endpoint on a plain ServeMux.
func NewServer(handler ConnHandler, registry *core.Registry, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	ws := NewWSHandler(handler, cfg.MaxFrameSize, logger)
	api := NewAPIHandlers(authService, registry, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.NewRegistry(), promhttp.HandlerOpts{})))

	apiGroup := router.Group("/api")
	apiGroup.GET("/online", api.Online)
	apiGroup.POST("/register", api.Register)
	apiGroup.POST("/login", api.Login)

	// The websocket upgrade hijacks the raw connection, so it stays off the
	// gin router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &Server{
		srv: &stdhttp.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ws:  ws,
		cfg: cfg,
		log: logger,
	}
}

// Handler exposes the root mux, mainly for httptest.
func (s *Server) Handler() stdhttp.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until the server stops. A Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server started")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then ends websocket sessions and waits
// up to the configured shutdown timeout for them.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if forced := s.ws.Shutdown(s.cfg.ShutdownTimeout); forced > 0 {
		s.log.Warn().Int("connections", forced).Msg("force-closed websocket connections after shutdown timeout")
	}
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
