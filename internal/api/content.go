// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/storage"
	"github.com/altqx/akane/internal/store"
)

func (s *Server) handleListSubtitles(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	subs, err := s.store.ListSubtitles(r.Context(), videoID)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("list subtitles failed")
		writeError(w, http.StatusInternalServerError, "Failed to list subtitles")
		return
	}
	if subs == nil {
		subs = []store.Subtitle{}
	}
	writeJSON(w, http.StatusOK, SubtitleListResponse{Subtitles: subs})
}

// handleSubtitleFile proxies one subtitle track, addressed as
// "{track}.{ext}" (for example "0.ass").
func (s *Server) handleSubtitleFile(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	file := chi.URLParam(r, "file")

	idx, _, found := strings.Cut(file, ".")
	trackIndex, err := strconv.Atoi(idx)
	if !found || err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track format")
		return
	}

	sub, ok, err := s.store.GetSubtitleByTrack(r.Context(), videoID, trackIndex)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("subtitle lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load subtitle")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Subtitle not found")
		return
	}

	contentType := "text/plain"
	if sub.Codec == "ass" || sub.Codec == "ssa" {
		contentType = "text/x-ssa"
	}
	s.proxyObject(w, r, sub.StorageKey, http.Header{
		"Content-Type":                {contentType},
		"Access-Control-Allow-Origin": {"*"},
	})
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	attachments, err := s.store.ListAttachments(r.Context(), videoID)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("list attachments failed")
		writeError(w, http.StatusInternalServerError, "Failed to list attachments")
		return
	}
	if attachments == nil {
		attachments = []store.Attachment{}
	}
	writeJSON(w, http.StatusOK, AttachmentListResponse{Attachments: attachments})
}

// handleAttachmentFile proxies one font attachment with a long cache
// lifetime; font files never change for a published video.
func (s *Server) handleAttachmentFile(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	filename := chi.URLParam(r, "filename")

	att, ok, err := s.store.GetAttachmentByFilename(r.Context(), videoID, filename)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("attachment lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load attachment")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}

	s.proxyObject(w, r, att.StorageKey, http.Header{
		"Content-Type":                {att.MimeType},
		"Access-Control-Allow-Origin": {"*"},
		"Cache-Control":               {"public, max-age=31536000"},
	})
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	chapters, err := s.store.ListChapters(r.Context(), videoID)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("list chapters failed")
		writeError(w, http.StatusInternalServerError, "Failed to list chapters")
		return
	}
	if chapters == nil {
		chapters = []store.Chapter{}
	}
	writeJSON(w, http.StatusOK, ChapterListResponse{Chapters: chapters})
}

// proxyObject streams one object from the store to the client.
func (s *Server) proxyObject(w http.ResponseWriter, r *http.Request, key string, headers http.Header) {
	body, err := s.objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Object not found")
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldKey, key).Msg("object fetch failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch object")
		return
	}
	defer body.Close()

	for name, values := range headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	_, _ = io.Copy(w, body)
}
