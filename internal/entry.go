// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/skald/internal/auth"
	"github.com/starford/skald/internal/devserver"
	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/gateway"
	"github.com/starford/skald/internal/hub"
	"github.com/starford/skald/internal/kvstore"
	"github.com/starford/skald/internal/localecho"
	"github.com/starford/skald/internal/mcpserver"
	"github.com/starford/skald/internal/session"
	"github.com/starford/skald/internal/sidebar"
	"github.com/starford/skald/internal/stream"
	"github.com/starford/skald/internal/watch"
)

func buildApp(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// Run starts the sync daemon: it connects to the daybook server, follows
// the push-event stream and keeps the sidebar state fresh until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := buildApp(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("api_base", cfg.API.BaseURL),
		slog.String("stream_url", cfg.API.EventsURL()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("session_id", session.ID()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := kvstore.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	tokens := auth.NewTokenStore(db)
	h := hub.New()
	gw := gateway.New(cfg.API.BaseURL, tokens, h, logger)
	coord := sidebar.NewCoordinator(gw, logger)
	echo := localecho.New(cfg.Stream.EchoWindow)
	coord.UseLocalEcho(echo)

	client := stream.New(cfg.API.EventsURL(), tokens, h, logger,
		cfg.Stream.BaseDelay, cfg.Stream.MaxAttempts)

	// Push events from other sessions refresh the sidebar. Events this
	// process caused come back tagged with its own session ID, or within
	// the local-echo window, and are dropped.
	refresh := func(id string, p event.Payload) {
		if p.SessionID == session.ID() || echo.WasRecent(id) {
			logger.Debug("skipping own event", slog.String("id", id))
			return
		}
		coord.GetSidebarInfo(ctx, false)
	}
	offNote := client.On(event.KindNoteUpdated, func(p event.Payload) {
		refresh(p.NoteUUID, p)
	})
	defer offNote()
	offTask := client.On(event.KindTaskUpdated, func(p event.Payload) {
		refresh(p.TaskUUID, p)
	})
	defer offTask()
	offColumn := client.On(event.KindTaskColumnUpdated, func(p event.Payload) {
		refresh(p.TaskUUID, p)
	})
	defer offColumn()

	offExpired := h.Subscribe(hub.AuthExpired, func(event.Payload) {
		logger.Warn("session expired, disconnecting stream")
		client.Disconnect()
	})
	defer offExpired()

	if tokens.HasToken() {
		coord.GetSidebarInfo(ctx, true)
		client.Connect()
	} else {
		logger.Warn("no stored token; run login first")
	}

	g, gCtx := errgroup.WithContext(ctx)

	if app.configFile != "" {
		g.Go(func() error {
			return watch.Watch(gCtx, app.configFile, logger, func() {
				logger.Info("config changed, reconnecting stream")
				// Disconnect exhausts the retry budget, so the reset
				// must come after it or the fresh dial has no backoff.
				client.Disconnect()
				client.ResetReconnect()
				if tokens.HasToken() {
					client.Connect()
				}
			})
		})
	}

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}

		client.Disconnect()
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Daemon stopped")
	return nil
}

// RunDev starts the built-in development server: the fake daybook API
// plus a live push-event stream, for working on the client without a
// real backend.
func RunDev(ctx context.Context, opts ...Option) error {
	app, err := buildApp(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	broker := devserver.NewBroker(cfg.Dev.Heartbeat)
	defer broker.Close()
	srv := devserver.New(broker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/", srv.Router())

	httpServer := &http.Server{
		Addr:    cfg.Dev.Address(),
		Handler: r,
	}

	logger.Info("Dev server starting", slog.String("address", cfg.Dev.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Dev server error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Dev server stopped")
	return nil
}

// RunMCP serves the daybook MCP tools over stdio.
func RunMCP(opts ...Option) error {
	app, err := buildApp(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	db, err := kvstore.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	tokens := auth.NewTokenStore(db)
	if !tokens.HasToken() {
		logger.Warn("no stored token; tool calls will be rejected by the server")
	}

	gw := gateway.New(cfg.API.BaseURL, tokens, hub.New(), logger)
	return mcpserver.New(gw).ServeStdio()
}

// Login authenticates against the daybook server and stores the token
// in the local key-value store for the daemon and MCP commands.
func Login(ctx context.Context, username, password string, opts ...Option) error {
	app, err := buildApp(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	db, err := kvstore.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	tokens := auth.NewTokenStore(db)
	gw := gateway.New(cfg.API.BaseURL, tokens, hub.New(), logger)
	if err := gw.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	logger.Info("logged in", slog.String("api_base", cfg.API.BaseURL))
	return nil
}
