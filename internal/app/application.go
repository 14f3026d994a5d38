package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"sessionrelay/internal/api"
	"sessionrelay/internal/config"
	"sessionrelay/internal/database"
	"sessionrelay/internal/hub"
	"sessionrelay/internal/router"
	"sessionrelay/internal/session"
	"sessionrelay/internal/websocket"
	"sessionrelay/pkg/interfaces"
)

// rateLimitSweepInterval is how often idle rate-limit entries are dropped
const rateLimitSweepInterval = time.Minute

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config         *config.Config
	logger         *slog.Logger
	journal        *database.Manager // nil when disabled
	sessionManager *session.Manager
	registry       *websocket.Registry
	signalRouter   *router.Router
	fanout         *hub.Hub
	wsHandler      *websocket.Handler
	apiServer      *api.Server
	httpServer     *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Journal → Registry → Hub → Session → Router → WebSocket → API → HTTP
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Optional lifecycle journal
	var journalManager *database.Manager
	var journal interfaces.Journal
	if cfg.Journal.Enabled {
		var err error
		journalManager, err = database.NewManager(cfg.DatabaseConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize journal: %w", err)
		}
		// TECHNICAL DISCOVERY: Assign only when enabled so a disabled journal
		// stays an untyped nil interface
		journal = journalManager
		logger.Info("journal enabled", "path", cfg.Journal.Path)
	}

	// STEP 2: Connection bookkeeping and fanout
	registry := websocket.NewRegistry()
	fanout := hub.NewHub(registry, logger)

	// STEP 3: Lifecycle controller over the in-memory store
	sessionManager := session.NewManager(session.NewStore(), registry, fanout, journal, logger)

	// STEP 4: Inbound signal routing and the push channel
	signalRouter := router.NewRouter(sessionManager, cfg.WebSocket.SignalRatePerMinute, logger)
	wsHandler := websocket.NewHandler(registry, signalRouter, websocket.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	}, logger)

	// STEP 5: Request/response surface
	apiServer := api.NewServer(sessionManager, journal, api.NewProcessProbe(), logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &Application{
		config:         cfg,
		logger:         logger.With("component", "app"),
		journal:        journalManager,
		sessionManager: sessionManager,
		registry:       registry,
		signalRouter:   signalRouter,
		fanout:         fanout,
		wsHandler:      wsHandler,
		apiServer:      apiServer,
		httpServer:     httpServer,
	}, nil
}

// Start listens on the configured address and serves in the background
func (app *Application) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, listener)
}

// Serve accepts connections on listener in the background
func (app *Application) Serve(ctx context.Context, listener net.Listener) error {
	app.mu.Lock()
	if app.listener != nil {
		app.mu.Unlock()
		return errors.New("application already started")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	app.listener = listener
	app.cancel = cancel
	app.done = make(chan struct{})
	app.mu.Unlock()

	app.logger.Info("starting session relay", "addr", listener.Addr().String())

	go app.sweepRateLimits(runCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		defer close(app.done)
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Verify server is ready before returning
	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("session relay started", "addr", listener.Addr().String())
		return nil
	case <-ctx.Done():
		cancel()
		_ = listener.Close()
		return ctx.Err()
	}
}

func (app *Application) sweepRateLimits(ctx context.Context) {
	ticker := time.NewTicker(rateLimitSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.signalRouter.CleanupRateLimits()
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → push connections → journal
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down session relay")

	app.mu.Lock()
	cancel := app.cancel
	done := app.done
	app.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error

	// STEP 1: Stop accepting new requests
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	// STEP 2: Hijacked push connections are not covered by Shutdown
	app.logger.Info("closing push connections",
		"open", app.wsHandler.OpenConnections(),
		"registry", app.registry.Stats())
	app.wsHandler.CloseAll()

	// STEP 3: Flush the journal
	if app.journal != nil {
		if err := app.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("shutdown finished with errors", "error", err)
		return err
	}
	app.logger.Info("session relay shutdown complete")
	return nil
}

// GetAddr returns the bound address once started, else the configured one
func (app *Application) GetAddr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler returns the root HTTP handler
func (app *Application) Handler() http.Handler {
	return app.httpServer.Handler
}

// Sessions returns the lifecycle controller
func (app *Application) Sessions() interfaces.SessionManager {
	return app.sessionManager
}
