// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface: upload ingestion, queue and
// progress reporting, video management, playback and analytics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/altqx/akane/internal/analytics"
	"github.com/altqx/akane/internal/config"
	"github.com/altqx/akane/internal/ingest"
	"github.com/altqx/akane/internal/middleware"
	"github.com/altqx/akane/internal/pipeline"
	"github.com/altqx/akane/internal/playback"
	"github.com/altqx/akane/internal/presence"
	"github.com/altqx/akane/internal/progress"
	"github.com/altqx/akane/internal/storage"
	"github.com/altqx/akane/internal/store"
)

// JobRunner starts background processing for a finalized upload.
type JobRunner interface {
	Process(ctx context.Context, job pipeline.Job)
}

// Server holds the handler dependencies.
type Server struct {
	cfg       config.Config
	registry  *progress.Registry
	ingest    *ingest.Reassembler
	jobs      JobRunner
	store     *store.Store
	objects   *storage.Client
	analytics *analytics.Client
	presence  *presence.Tracker
	auth      *playback.Authorizer

	// SSE timing, shortened in tests.
	progressPoll     time.Duration
	progressTimeout  time.Duration
	terminalGrace    time.Duration
	realtimeInterval time.Duration
}

// NewServer wires a Server. analytics may be nil when the warehouse is
// not configured.
func NewServer(cfg config.Config, registry *progress.Registry, reassembler *ingest.Reassembler, jobs JobRunner, st *store.Store, objects *storage.Client, ac *analytics.Client, tracker *presence.Tracker, auth *playback.Authorizer) *Server {
	return &Server{
		cfg:              cfg,
		registry:         registry,
		ingest:           reassembler,
		jobs:             jobs,
		store:            st,
		objects:          objects,
		analytics:        ac,
		presence:         tracker,
		auth:             auth,
		progressPoll:     500 * time.Millisecond,
		progressTimeout:  60 * time.Second,
		terminalGrace:    3 * time.Second,
		realtimeInterval: 2 * time.Second,
	}
}

// Router builds the full route tree with the ingress middleware stack.
func (s *Server) Router() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  true,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// The cap applies to the API only; HLS segment fetches during
		// playback stay unthrottled.
		if s.cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimitPerMinute))
		}

		// Public: player-page fetches and analytics.
		r.Post("/videos/{id}/heartbeat", s.handleHeartbeat)
		r.Post("/videos/{id}/view", s.handleTrackView)
		r.Get("/videos/{id}/subtitles", s.handleListSubtitles)
		r.Get("/videos/{id}/subtitles/{file}", s.handleSubtitleFile)
		r.Get("/videos/{id}/attachments", s.handleListAttachments)
		r.Get("/videos/{id}/attachments/{filename}", s.handleAttachmentFile)
		r.Get("/videos/{id}/chapters", s.handleListChapters)
		r.Get("/analytics/realtime", s.handleRealtimeAnalytics)
		r.Get("/analytics/history", s.handleAnalyticsHistory)
		r.Get("/analytics/videos", s.handleAnalyticsVideos)

		// Admin.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/upload", s.handleDirectUpload)
			r.Post("/upload/chunk", s.handleUploadChunk)
			r.Post("/upload/finalize", s.handleFinalizeUpload)
			r.Get("/progress/{uploadID}", s.handleProgressSSE)
			r.Get("/queues", s.handleListQueues)
			r.Post("/queues/{uploadID}/cancel", s.handleCancelQueue)
			r.Get("/videos", s.handleListVideos)
			r.Put("/videos/{id}", s.handleUpdateVideo)
			r.Delete("/videos", s.handleDeleteVideos)
			r.Get("/auth/check", s.handleAuthCheck)
		})
	})

	r.Get("/player/{id}", s.handlePlayerPage)
	r.Get("/hls/{id}/*", s.handleHLSFile)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
