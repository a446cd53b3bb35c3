// Package api exposes the evidence service over HTTP. Transport stays thin:
// handlers decode, call a service, encode; every business rule lives below.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rentproof/rentproof/internal/logging"
)

// Server is the public HTTP server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration
}

// NewServer wires the router and middleware around the handler set.
// authenticate guards everything under /api; /healthz stays open.
func NewServer(addr string, h *Handler, authenticate func(http.Handler) http.Handler, logger logging.Logger, shutdownTimeout time.Duration) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", h.Health)

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", h.CreateCase)

			r.Route("/{caseID}", func(r chi.Router) {
				r.Get("/", h.GetCase)
				r.Delete("/", h.DeleteCase)

				r.Post("/checkin/lock", h.LockCheckin)
				r.Post("/handover/lock", h.LockHandover)
				r.Post("/keys-returned", h.ConfirmKeysReturned)

				r.Post("/rooms", h.CreateRoom)
				r.Get("/rooms", h.ListRooms)
				r.Delete("/rooms/{roomID}", h.DeleteRoom)

				r.Post("/uploads", h.InitiateUpload)
				r.Post("/uploads/{assetID}/complete", h.CompleteUpload)
				r.Get("/assets", h.ListAssets)
				r.Get("/assets/{assetID}/download", h.DownloadAsset)
				r.Delete("/assets/{assetID}", h.DeleteAsset)

				r.Get("/audit", h.ListAudit)
				r.Get("/entitlements/{capability}", h.ResolveEntitlement)
				r.Post("/checkout", h.CreateCheckout)
			})
		})

		r.Post("/admin/cases/{caseID}/unlock", h.AdminUnlock)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until SIGINT/SIGTERM or a listener error, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info(ctx, "shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info(ctx, "shutdown requested", "reason", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.logger.Info(ctx, "http server stopped")
	return nil
}
