package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"campushub/internal/api"
	"campushub/internal/auth"
	"campushub/internal/chat"
	"campushub/internal/config"
	"campushub/internal/database"
	"campushub/internal/dispatch"
	"campushub/internal/hub"
	"campushub/internal/polling"
	"campushub/internal/registry"
	"campushub/internal/session"
	"campushub/internal/websocket"
)

// Application coordinates all server components. Initialization follows
// strict dependency order:
// Database -> Sessions -> Registry -> Dispatcher -> Hub -> API -> Transports -> HTTP
type Application struct {
	config       *config.Config
	dbManager    *database.Manager
	sessionStore *session.Store
	registry     *registry.Registry
	dispatcher   *dispatch.Dispatcher
	eventHub     *hub.Hub
	apiServer    *api.Server
	pollHandler  *polling.Handler
	httpServer   *http.Server
}

// NewApplication builds the full component graph from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(&database.Config{
		Path:            cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	sessionStore := session.NewStore(dbManager)
	if err := sessionStore.LoadActiveSessions(context.Background()); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}

	reg := registry.NewRegistry()

	responder := chat.NewStaticResponder()

	dispatcher := dispatch.NewDispatcher(reg, responder, dbManager, dispatch.Options{
		ChatTimeout:             cfg.Chat.ResponseTimeout,
		IncludeAttendanceOrigin: cfg.Dispatch.IncludeAttendanceOrigin,
		RequireIdentityToken:    cfg.Auth.RequireToken,
		Auth: auth.Config{
			Secret:     cfg.Auth.JWTSecret,
			Issuer:     cfg.Auth.JWTIssuer,
			Expiration: cfg.Auth.JWTExpiration,
		},
	})

	eventHub := hub.NewHub(reg, dispatcher)

	apiServer := api.NewServer(sessionStore, dbManager, reg)

	wsHandler := websocket.NewHandler(eventHub, websocket.Config{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	var pollHandler *polling.Handler
	if cfg.Polling.Enabled {
		pollHandler = polling.NewHandler(eventHub, polling.Config{
			WaitTimeout: cfg.Polling.WaitTimeout,
			IdleTimeout: cfg.Polling.IdleTimeout,
			BufferSize:  cfg.WebSocket.BufferSize,
		})
		mux.HandleFunc("/poll/connect", pollHandler.HandleConnect)
		mux.HandleFunc("/poll/events", pollHandler.HandleEvents)
		mux.HandleFunc("/poll/send", pollHandler.HandleSend)
		mux.HandleFunc("/poll/disconnect", pollHandler.HandleDisconnect)
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:     mux,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		// Long polls must outlive the write timeout or they always 502.
		WriteTimeout: maxDuration(cfg.HTTP.WriteTimeout, cfg.Polling.WaitTimeout+5*time.Second),
	}

	return &Application{
		config:       cfg,
		dbManager:    dbManager,
		sessionStore: sessionStore,
		registry:     reg,
		dispatcher:   dispatcher,
		eventHub:     eventHub,
		apiServer:    apiServer,
		pollHandler:  pollHandler,
		httpServer:   httpServer,
	}, nil
}

// Start launches the hub loop, then the HTTP listener.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting campushub on %s", app.httpServer.Addr)

	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.eventHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("campushub started")
		return nil
	case <-ctx.Done():
		_ = app.eventHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: stop accepting
// traffic, drain the hub, then close storage.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Stopping campushub")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.pollHandler != nil {
		app.pollHandler.Stop()
	}

	if err := app.eventHub.Stop(); err != nil {
		log.Printf("Event hub stop error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Printf("campushub stopped")
	return nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
