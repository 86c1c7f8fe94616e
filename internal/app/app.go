package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
	"github.com/vovakirdan/wirechat-lite/internal/chat"
	"github.com/vovakirdan/wirechat-lite/internal/config"
	"github.com/vovakirdan/wirechat-lite/internal/core"
	"github.com/vovakirdan/wirechat-lite/internal/store"
	"github.com/vovakirdan/wirechat-lite/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-lite/internal/transport/http"
	"github.com/vovakirdan/wirechat-lite/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	listener        *tcp.Listener
	server          *transporthttp.Server
	registry        *core.Registry
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. It opens the
// store, seeds configured accounts and binds the TCP listener.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var jwtConfig *auth.JWTConfig
	if cfg.JWTSecret != "" {
		jwtConfig = &auth.JWTConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.TokenTTL,
		}
	}
	authService := auth.NewService(st, jwtConfig)

	if len(cfg.SeedUsers) > 0 {
		created, err := authService.Seed(ctx, cfg.SeedUsers)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed users: %w", err)
		}
		logger.Info().Int("created", created).Int("configured", len(cfg.SeedUsers)).Msg("seed accounts applied")
	}

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster(registry,
		core.WithEcho(cfg.EchoToSender),
		core.WithLogger(logger),
	)

	opts := HandlerOptions(cfg)
	if authService.TokensEnabled() {
		opts.Tokens = authService
	}
	handler := chat.NewHandler(authService, registry, broadcaster, opts, logger)

	listener, err := tcp.Listen(cfg.Addr, handler, tcp.Options{
		MaxConnections:  cfg.MaxConnections,
		MaxFrameSize:    cfg.MaxFrameSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var server *transporthttp.Server
	if cfg.HTTPAddr != "" {
		server = transporthttp.NewServer(handler, registry, authService, *cfg, logger)
	}

	return &App{
		listener:        listener,
		server:          server,
		registry:        registry,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// HandlerOptions maps configuration onto connection handler options.
func HandlerOptions(cfg *config.Config) chat.Options {
	return chat.Options{
		AuthTimeout:        cfg.AuthTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		GatewayTimeout:     cfg.GatewayTimeout,
		MaxMessageLength:   cfg.MaxMessageLength,
		OutboxSize:         cfg.OutboxSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxAuthAttempts:    cfg.MaxAuthAttempts,
	}
}

// TCPAddr is the address the chat listener is bound to.
func (a *App) TCPAddr() string {
	return a.listener.Addr().String()
}

// Run serves until ctx is cancelled or a transport fails, then shuts every
// transport down and closes the store.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.listener.Serve(gctx)
	})

	if a.server != nil {
		g.Go(a.server.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down http server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.log.Info().Int("sessions", a.registry.Len()).Msg("server stopped")
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
