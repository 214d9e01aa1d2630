// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/store"
)

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize == 0 {
		pageSize = 20
	}
	pageSize = min(max(pageSize, 1), 100)

	query := store.VideoQuery{
		Page:     page,
		PageSize: pageSize,
		Name:     q.Get("name"),
		Tag:      q.Get("tag"),
	}

	total, err := s.store.CountVideos(r.Context(), query)
	if err != nil {
		logger.Error().Err(err).Msg("count videos failed")
		writeError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	videos, err := s.store.ListVideos(r.Context(), query)
	if err != nil {
		logger.Error().Err(err).Msg("list videos failed")
		writeError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	// View counts are best effort; the listing must work with the
	// warehouse down.
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	counts, err := s.analytics.ViewCounts(r.Context(), ids)
	if err != nil {
		logger.Warn().Err(err).Msg("view counts unavailable")
		counts = map[string]int64{}
	}

	items := make([]VideoDto, len(videos))
	for i, v := range videos {
		items[i] = s.videoDto(v, counts[v.ID])
	}

	writeJSON(w, http.StatusOK, VideoListResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasNext:  page*pageSize < total,
		HasPrev:  page > 1,
	})
}

func (s *Server) handleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var body UpdateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}

	ok, err := s.store.UpdateVideo(r.Context(), videoID, body.Name, body.Tags)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("update video failed")
		writeError(w, http.StatusInternalServerError, "Failed to update video")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleDeleteVideos(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var body DeleteVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "No video IDs provided")
		return
	}

	ids, err := s.store.VideoIDsWithPrefix(r.Context(), body.IDs)
	if err != nil {
		logger.Error().Err(err).Msg("resolve video ids failed")
		writeError(w, http.StatusInternalServerError, "Failed to delete videos")
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusNotFound, "No videos found")
		return
	}

	// Artifacts first, rows second: a retried delete after a partial
	// failure still finds the rows.
	for _, id := range ids {
		if _, err := s.objects.DeletePrefix(r.Context(), id+"/"); err != nil {
			logger.Error().Err(err).Str(log.FieldVideoID, id).Msg("artifact delete failed")
			writeError(w, http.StatusInternalServerError, "Failed to delete video artifacts")
			return
		}
	}

	deleted, err := s.store.DeleteVideos(r.Context(), ids)
	if err != nil {
		logger.Error().Err(err).Msg("delete rows failed")
		writeError(w, http.StatusInternalServerError, "Failed to delete videos")
		return
	}

	writeJSON(w, http.StatusOK, DeleteVideosResponse{
		Deleted: deleted,
		Message: fmt.Sprintf("Successfully deleted %d video(s)", deleted),
	})
}
