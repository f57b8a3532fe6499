// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is the admin HTTP server. It implements suture.Service.
type Server struct {
	addr    string
	handler http.Handler
	log     zerolog.Logger
}

// NewServer wires the router: health and metrics are open, the sync
// trigger is rate limited per client IP.
func NewServer(cfg *config.ServerConfig, h *Handler) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	syncLimit := cfg.SyncRateLimit
	if syncLimit <= 0 {
		syncLimit = 10
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.With(httprate.LimitByIP(syncLimit, time.Minute)).Post("/sync", h.TriggerSync)
		r.Get("/opqueue", h.OpQueue)
		r.Get("/logs", h.Logs)
	})

	return &Server{
		addr:    cfg.ListenAddr,
		handler: r,
		log:     logging.Component("api"),
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve implements suture.Service: it runs the HTTP server until the
// context is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string { return "http-server" }
