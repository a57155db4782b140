// Package api exposes stored anomalies over HTTP for dashboards and
// operator tooling.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/export"
	"github.com/gridwatch/sentinel/internal/model"
	"github.com/gridwatch/sentinel/internal/store"
)

// Server handles the anomaly HTTP API.
type Server struct {
	store store.Store
}

// NewServer creates a Server over the given store.
func NewServer(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/anomalies", s.handleListAnomalies)
	r.Post("/anomalies/{id}/ack", s.handleAcknowledge)
	r.Get("/stats", s.handleStats)
	r.Get("/export", s.handleExport)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	anomalies, err := s.store.ListUnacknowledged(r.Context(), limit)
	if err != nil {
		zap.L().Error("api: list anomalies failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []model.Anomaly{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Acknowledge(r.Context(), id); err != nil {
		zap.L().Error("api: acknowledge failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to acknowledge anomaly")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged", "id": id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		zap.L().Error("api: stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	anomalies, err := s.store.ListUnacknowledged(r.Context(), 0)
	if err != nil {
		zap.L().Error("api: export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export anomalies")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="anomalies.csv"`)
		if err := export.CSV(w, anomalies); err != nil {
			zap.L().Error("api: csv export failed", zap.Error(err))
		}
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown")
		if err := export.Markdown(w, anomalies); err != nil {
			zap.L().Error("api: markdown export failed", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
