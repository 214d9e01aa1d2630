// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/playback"
)

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	s.presence.Heartbeat(videoID, playback.ClientIP(r), r.UserAgent())
	w.WriteHeader(http.StatusOK)
}

// handleTrackView records one view. View tracking is best effort; a
// warehouse failure never breaks playback.
func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if err := s.analytics.InsertView(r.Context(), videoID, playback.ClientIP(r), r.UserAgent()); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Str(log.FieldVideoID, videoID).Msg("view insert failed")
	}
	w.WriteHeader(http.StatusOK)
}

// handleRealtimeAnalytics streams the live viewer count per video.
func (s *Server) handleRealtimeAnalytics(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.realtimeInterval):
		}

		data, err := json.Marshal(s.presence.Snapshot())
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) handleAnalyticsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.analytics.History(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleAnalyticsVideos(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	videos, err := s.store.RecentVideos(r.Context(), 100)
	if err != nil {
		logger.Error().Err(err).Msg("recent videos failed")
		writeError(w, http.StatusInternalServerError, "Failed to load videos")
		return
	}
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	counts, err := s.analytics.ViewCounts(r.Context(), ids)
	if err != nil {
		logger.Warn().Err(err).Msg("view counts unavailable")
		counts = map[string]int64{}
	}

	items := make([]AnalyticsVideoDto, len(videos))
	for i, v := range videos {
		items[i] = AnalyticsVideoDto{
			ID:           v.ID,
			Name:         v.Name,
			ViewCount:    counts[v.ID],
			CreatedAt:    v.CreatedAt,
			ThumbnailURL: s.cfg.PublicBaseURL + "/" + v.ThumbnailKey,
		}
	}
	writeJSON(w, http.StatusOK, items)
}
