// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/altqx/akane/internal/progress"
)

func (s *Server) handleListQueues(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.Snapshot()
	items := make([]QueueItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, QueueItem{
			UploadID:         e.ID,
			ProgressResponse: progressResponse(e),
			VideoName:        e.VideoName,
			CreatedAt:        e.CreatedAt,
		})
	}
	active, completed, failed := s.registry.Counts()
	writeJSON(w, http.StatusOK, QueueListResponse{
		Items:          items,
		ActiveCount:    active,
		CompletedCount: completed,
		FailedCount:    failed,
	})
}

func (s *Server) handleCancelQueue(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	err := s.registry.Cancel(uploadID)
	switch {
	case errors.Is(err, progress.ErrNotFound):
		writeError(w, http.StatusNotFound, "Queue item not found")
		return
	case errors.Is(err, progress.ErrNotCancellable):
		writeError(w, http.StatusConflict, "Cannot cancel: video is already being processed")
		return
	}

	// Drop any chunk scratch the upload left behind.
	s.ingest.Cancel(uploadID)

	writeJSON(w, http.StatusOK, CancelQueueResponse{
		Cancelled: true,
		Message:   "Queue item cancelled successfully",
	})
}

// handleProgressSSE streams progress frames for one upload. It polls
// the registry, closes shortly after the terminal frame, and reports
// an error event if the upload never appears.
func (s *Server) handleProgressSSE(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	deadline := time.Now().Add(s.progressTimeout)
	for {
		e, found := s.registry.Get(uploadID)
		if found {
			data, err := json.Marshal(progressResponse(e))
			if err == nil {
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
			if e.Status.Terminal() {
				// Give slow clients a chance to read the final frame.
				select {
				case <-ctx.Done():
				case <-time.After(s.terminalGrace):
				}
				return
			}
		} else if time.Now().After(deadline) {
			fmt.Fprintf(w, "event: error\ndata: Upload ID not found (timeout)\n\n")
			flusher.Flush()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.progressPoll):
		}
	}
}
