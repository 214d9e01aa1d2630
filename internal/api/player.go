// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/metrics"
	"github.com/altqx/akane/internal/playback"
)

// handlePlayerPage issues a playback token bound to the caller and
// renders the player HTML.
func (s *Server) handlePlayerPage(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "api")

	if _, ok, err := s.store.GetVideo(ctx, videoID); err != nil {
		logger.Error().Err(err).Msg("video lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load video")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}

	subs, err := s.store.ListSubtitles(ctx, videoID)
	if err != nil {
		logger.Error().Err(err).Msg("subtitle lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load video")
		return
	}
	attachments, err := s.store.ListAttachments(ctx, videoID)
	if err != nil {
		logger.Error().Err(err).Msg("attachment lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load video")
		return
	}
	chapters, err := s.store.ListChapters(ctx, videoID)
	if err != nil {
		logger.Error().Err(err).Msg("chapter lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load video")
		return
	}

	data := playback.PageData{VideoID: videoID}
	for _, sub := range subs {
		data.Subtitles = append(data.Subtitles, playback.SubtitleTrack{
			TrackIndex: sub.TrackIndex,
			Title:      sub.Title,
			Language:   sub.Language,
			Codec:      sub.Codec,
			Default:    sub.Default,
		})
	}
	for _, att := range attachments {
		data.Fonts = append(data.Fonts, att.Filename)
	}
	for _, ch := range chapters {
		data.Chapters = append(data.Chapters, playback.Chapter{
			Start: ch.StartTime,
			End:   ch.EndTime,
			Title: ch.Title,
		})
	}

	token := s.auth.IssueToken(videoID, playback.ClientIP(r), r.UserAgent())
	w.Header().Set("Set-Cookie", playback.TokenCookie(token, r))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(playback.RenderPlayerPage(data)))
}

// handleHLSFile proxies HLS artifacts from the object store. Playlists
// and segments require a valid playback token cookie; thumbnails and
// other auxiliary files are open.
func (s *Server) handleHLSFile(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	file := chi.URLParam(r, "*")

	if strings.HasSuffix(file, ".m3u8") || strings.HasSuffix(file, ".ts") {
		token := ""
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
		if !s.auth.VerifyToken(videoID, token, playback.ClientIP(r), r.UserAgent()) {
			metrics.TokenVerifications.WithLabelValues("denied").Inc()
			writeError(w, http.StatusForbidden, "Access denied: Invalid or expired token")
			return
		}
		metrics.TokenVerifications.WithLabelValues("ok").Inc()
	}

	s.proxyObject(w, r, videoID+"/"+file, http.Header{
		"Content-Type": {hlsContentType(file)},
	})
}

func hlsContentType(file string) string {
	switch {
	case strings.HasSuffix(file, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(file, ".ts"):
		return "video/mp2t"
	case strings.HasSuffix(file, ".jpg"), strings.HasSuffix(file, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
