// ABOUTME: Gateway orchestrator that runs the HTTP surface next to the manager.
// ABOUTME: Owns listener setup, server lifecycle, and graceful shutdown.

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/raissanails/wanotify/internal/config"
	"github.com/raissanails/wanotify/internal/notifier"
)

// Gateway wires the notifier manager to its HTTP surface. The HTTP layer is
// a thin adapter: every handler delegates to the manager and translates its
// errors to status codes.
type Gateway struct {
	config     *config.Config
	manager    *notifier.Manager
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Gateway serving the given manager.
func New(cfg *config.Config, mgr *notifier.Manager, logger *slog.Logger) *Gateway {
	g := &Gateway{
		config:  cfg,
		manager: mgr,
		logger:  logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/status", g.handleStatus)
	mux.HandleFunc("/qrcode", g.handleQRPage)
	mux.HandleFunc("/send-message", g.handleSendMessage)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startServer starts the HTTP server in a goroutine, returning error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, letting in-flight requests finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	if err := g.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive. Liveness only; use
// /status for session readiness.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
