// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/altqx/akane/internal/ingest"
	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/pipeline"
	"github.com/altqx/akane/internal/progress"
)

const headerUploadID = "X-Upload-ID"

// startJob queues the assembled file and hands it to the pipeline. The
// job must outlive the request.
func (s *Server) startJob(job pipeline.Job) {
	zero, one := 0, 1
	pct := 0.0
	s.registry.Publish(job.UploadID, progress.Update{
		Stage:        progress.StageQueued,
		CurrentChunk: &zero,
		TotalChunks:  &one,
		Percentage:   &pct,
		Status:       progress.StatusProcessing,
		VideoName:    job.Name,
	})
	go s.jobs.Process(context.Background(), job)
}

// handleDirectUpload receives a whole file in one multipart request.
func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	uploadID := uuid.NewString()
	var (
		name     string
		rawTags  string
		path     string
		fileName string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		switch part.FormName() {
		case "file":
			fileName = filepath.Base(part.FileName())
			path = filepath.Join(s.cfg.ScratchDir, uploadID+"-"+fileName)
			if err := writePart(path, part); err != nil {
				logger.Error().Err(err).Msg("failed to spool upload")
				writeError(w, http.StatusInternalServerError, "Failed to store upload")
				return
			}
		case "name":
			name = readPart(part)
		case "tags":
			rawTags = readPart(part)
		}
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	if name == "" {
		name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	s.startJob(pipeline.Job{
		UploadID:   uploadID,
		SourcePath: path,
		Name:       name,
		Tags:       ingest.ParseTags(rawTags),
	})

	writeJSON(w, http.StatusOK, UploadAccepted{
		UploadID: uploadID,
		Message:  "File uploaded successfully, processing started in background",
	})
}

func writePart(path string, part *multipart.Part) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, part); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func readPart(part *multipart.Part) string {
	var b strings.Builder
	_, _ = io.Copy(&b, io.LimitReader(part, 64<<10))
	return strings.TrimSpace(b.String())
}

// handleUploadChunk receives one chunk of a chunked upload. The first
// chunk of an upload ID implicitly registers it.
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	uploadID := r.Header.Get(headerUploadID)
	if uploadID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-Upload-ID header")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	var (
		chunk       []byte
		chunkIndex  = -1
		totalChunks = -1
		fileName    string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		switch part.FormName() {
		case "chunk":
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, part); err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read chunk data")
				return
			}
			chunk = buf.Bytes()
		case "chunk_index":
			if chunkIndex, err = strconv.Atoi(readPart(part)); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid chunk_index")
				return
			}
		case "total_chunks":
			if totalChunks, err = strconv.Atoi(readPart(part)); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid total_chunks")
				return
			}
		case "file_name":
			fileName = readPart(part)
		}
	}
	switch {
	case chunk == nil:
		writeError(w, http.StatusBadRequest, "Missing chunk data")
		return
	case chunkIndex < 0:
		writeError(w, http.StatusBadRequest, "Missing chunk_index")
		return
	case totalChunks < 0:
		writeError(w, http.StatusBadRequest, "Missing total_chunks")
		return
	case fileName == "":
		writeError(w, http.StatusBadRequest, "Missing file_name")
		return
	}

	received, total, err := s.ingest.AcceptChunk(uploadID, fileName, chunkIndex, bytes.NewReader(chunk))
	if errors.Is(err, ingest.ErrUnknownUpload) {
		if err = s.ingest.Init(uploadID, fileName, totalChunks, nil); err == nil {
			s.publishChunkProgress(uploadID, fileName, 0, totalChunks, "Receiving chunk 1 of "+strconv.Itoa(totalChunks))
			received, total, err = s.ingest.AcceptChunk(uploadID, fileName, chunkIndex, bytes.NewReader(chunk))
		}
	}
	if err != nil {
		if errors.Is(err, ingest.ErrProtocolViolation) || errors.Is(err, ingest.ErrUnknownUpload) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to store chunk")
		}
		return
	}

	s.publishChunkProgress(uploadID, fileName, received, total,
		"Received chunk "+strconv.Itoa(received)+" of "+strconv.Itoa(total))

	writeJSON(w, http.StatusOK, ChunkUploadResponse{
		UploadID:   uploadID,
		ChunkIndex: chunkIndex,
		Received:   true,
	})
}

func (s *Server) publishChunkProgress(uploadID, fileName string, received, total int, details string) {
	pct := 0.0
	if total > 0 {
		pct = float64(received) / float64(total) * 100
	}
	s.registry.Publish(uploadID, progress.Update{
		Stage:        progress.StageReceiving,
		CurrentChunk: &received,
		TotalChunks:  &total,
		Percentage:   &pct,
		Details:      details,
		Status:       progress.StatusProcessing,
		// The dashboard keys its queue rows by this name and treats
		// dots as separators, so the extension dot must be flattened.
		VideoName: strings.ReplaceAll(fileName, ".", "_"),
	})
}

// handleFinalizeUpload assembles the chunks and queues processing.
func (s *Server) handleFinalizeUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := r.Header.Get(headerUploadID)
	if uploadID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-Upload-ID header")
		return
	}

	var body FinalizeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}

	if e, ok := s.registry.Get(uploadID); ok {
		total := 1
		if e.TotalChunks != nil {
			total = *e.TotalChunks
		}
		pct := 100.0
		s.registry.Publish(uploadID, progress.Update{
			Stage:        progress.StageAssembling,
			CurrentChunk: &total,
			TotalChunks:  &total,
			Percentage:   &pct,
			Details:      "Assembling chunks into final file...",
			Status:       progress.StatusProcessing,
			VideoName:    body.Name,
		})
	}

	assembled, err := s.ingest.Finalize(uploadID)
	switch {
	case errors.Is(err, ingest.ErrUnknownUpload):
		writeError(w, http.StatusNotFound, "Upload ID not found or already finalized")
		return
	case errors.Is(err, ingest.ErrIncompleteUpload):
		writeError(w, http.StatusBadRequest, "Not all chunks have been received")
		return
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("finalize failed")
		writeError(w, http.StatusInternalServerError, "Failed to assemble upload")
		return
	}

	var tags []string
	if body.Tags != nil {
		tags = ingest.ParseTags(*body.Tags)
	}

	s.startJob(pipeline.Job{
		UploadID:   uploadID,
		SourcePath: assembled.Path,
		Name:       body.Name,
		Tags:       tags,
	})

	writeJSON(w, http.StatusOK, UploadAccepted{
		UploadID: uploadID,
		Message:  "Upload finalized, processing started in background",
	})
}
