// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/common-repository/crowdaa-sync/internal/logging"
	"github.com/common-repository/crowdaa-sync/internal/syncer"
)

// maxLogLines caps how much of the ring buffer one request may tail.
const maxLogLines = 1000

// Handler serves the admin endpoints.
type Handler struct {
	syncer *syncer.Syncer
	log    zerolog.Logger
}

// NewHandler builds a handler over the syncer.
func NewHandler(s *syncer.Syncer) *Handler {
	return &Handler{syncer: s, log: logging.Component("api")}
}

// TriggerSync runs one full synchronization pass and reports its
// result. Concurrent triggers wait briefly on the run lock and then
// fail with a conflict.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.syncer.Run(r.Context(), syncer.TriggerManual)
	switch {
	case errors.Is(err, syncer.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
	case errors.Is(err, syncer.ErrLockTimeout):
		respondError(w, http.StatusConflict, ErrCodeConflict, "another sync run is in progress")
	case err != nil:
		h.log.Error().Err(err).Msg("Sync run failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	default:
		respondSuccess(w, res)
	}
}

// OpQueue computes and returns the classified operation queues without
// applying anything.
func (h *Handler) OpQueue(w http.ResponseWriter, r *http.Request) {
	res, err := h.syncer.Preview(r.Context())
	switch {
	case errors.Is(err, syncer.ErrLockTimeout):
		respondError(w, http.StatusConflict, ErrCodeConflict, "a sync run is in progress")
	case err != nil:
		h.log.Error().Err(err).Msg("Queue preview failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	default:
		respondSuccess(w, map[string]any{
			"badges":     res.Badges,
			"categories": res.Categories,
			"articles":   res.Articles,
		})
	}
}

// Logs tails the in-memory log ring. The lines parameter bounds how
// many entries come back, newest last.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "lines must be a positive integer")
			return
		}
		lines = n
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}
	respondSuccess(w, map[string]any{"lines": logging.Tail(lines)})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, map[string]string{"status": "ok"})
}
