package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/auth"
	"github.com/vovakirdan/studyhub-server/internal/callengine"
	"github.com/vovakirdan/studyhub-server/internal/callengine/livekit"
	"github.com/vovakirdan/studyhub-server/internal/config"
	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/service/calls"
	"github.com/vovakirdan/studyhub-server/internal/service/friends"
	"github.com/vovakirdan/studyhub-server/internal/service/messages"
	"github.com/vovakirdan/studyhub-server/internal/store"
	"github.com/vovakirdan/studyhub-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/studyhub-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a, err := NewWithStore(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the application on an already opened store. The App
// takes ownership of st.
func NewWithStore(cfg *config.Config, st store.Store, logger *zerolog.Logger) (*App, error) {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	var engine callengine.Engine
	if cfg.LiveKitEnabled {
		if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" || cfg.LiveKitURL == "" {
			return nil, errors.New("livekit is enabled but url, api key or api secret is missing")
		}
		engine = livekit.New(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitURL)
		logger.Info().Str("url", cfg.LiveKitURL).Msg("livekit call engine enabled")
	}

	registry := core.NewRegistry()
	members := core.NewMemberCache(st, cfg.MembershipCacheTTL)
	fanout := core.NewFanout(registry, members, st, st, logger)
	messageService := messages.New(st, fanout, logger)

	var tokens core.TokenVerifier
	if cfg.RequireWSToken {
		tokens = authService
	}
	hub := core.NewHub(fanout, messageService, tokens, logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:      hub,
		Members:  members,
		Auth:     authService,
		Messages: messageService,
		Friends:  friends.New(st),
		Calls:    calls.New(st, engine),
		Store:    st,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Handler exposes the HTTP handler for in-process tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		users, rooms := a.hub.Registry().Stats()
		a.log.Info().Int("users", users).Int("rooms", rooms).Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
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
