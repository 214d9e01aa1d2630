// SPDX-License-Identifier: MIT

// Package ingest receives chunked uploads and reassembles them into a
// single source file for the transcode pipeline.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/altqx/akane/internal/log"
)

var (
	// ErrUnknownUpload is returned for chunk or finalize calls that
	// reference an upload ID that was never initialised.
	ErrUnknownUpload = errors.New("ingest: unknown upload")

	// ErrProtocolViolation is returned when a chunk contradicts the
	// declared upload: out-of-range index or a different file name.
	ErrProtocolViolation = errors.New("ingest: protocol violation")

	// ErrIncompleteUpload is returned by Finalize when chunks are missing.
	ErrIncompleteUpload = errors.New("ingest: upload incomplete")
)

type upload struct {
	fileName string
	tags     []string
	total    int
	received []bool
	dir      string
}

// Assembled describes a fully reassembled source file.
type Assembled struct {
	Path     string
	FileName string
	Tags     []string
}

// Reassembler tracks in-flight chunked uploads. Chunk payloads live on
// disk under the scratch directory; only bookkeeping is held in memory.
type Reassembler struct {
	mu      sync.Mutex
	scratch string
	uploads map[string]*upload
}

// NewReassembler returns a Reassembler writing under scratchDir.
func NewReassembler(scratchDir string) *Reassembler {
	return &Reassembler{
		scratch: scratchDir,
		uploads: make(map[string]*upload),
	}
}

// Init registers a new chunked upload and creates its chunk directory.
// The file name is reduced to its base name to keep uploads inside the
// scratch directory.
func (r *Reassembler) Init(uploadID, fileName string, totalChunks int, tags []string) error {
	if totalChunks < 1 {
		return fmt.Errorf("%w: total_chunks must be at least 1", ErrProtocolViolation)
	}
	fileName = filepath.Base(fileName)
	if fileName == "." || fileName == string(filepath.Separator) || fileName == "" {
		return fmt.Errorf("%w: invalid file name", ErrProtocolViolation)
	}

	dir := filepath.Join(r.scratch, "chunked-"+uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[uploadID] = &upload{
		fileName: fileName,
		tags:     tags,
		total:    totalChunks,
		received: make([]bool, totalChunks),
		dir:      dir,
	}
	return nil
}

// AcceptChunk stores one chunk. Re-sending an index overwrites the
// previous payload, so client retries are safe. It returns how many
// distinct chunks have arrived and the declared total.
func (r *Reassembler) AcceptChunk(uploadID, fileName string, index int, data io.Reader) (received, total int, err error) {
	r.mu.Lock()
	u, ok := r.uploads[uploadID]
	if !ok {
		r.mu.Unlock()
		return 0, 0, ErrUnknownUpload
	}
	if index < 0 || index >= u.total {
		r.mu.Unlock()
		return 0, 0, fmt.Errorf("%w: chunk index %d out of range [0,%d)", ErrProtocolViolation, index, u.total)
	}
	if filepath.Base(fileName) != u.fileName {
		r.mu.Unlock()
		return 0, 0, fmt.Errorf("%w: file name %q does not match upload %q", ErrProtocolViolation, fileName, u.fileName)
	}
	dir := u.dir
	r.mu.Unlock()

	path := filepath.Join(dir, chunkName(index))
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("create chunk file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return 0, 0, fmt.Errorf("write chunk %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		return 0, 0, fmt.Errorf("close chunk %d: %w", index, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The upload may have been cancelled while the chunk was written.
	u, ok = r.uploads[uploadID]
	if !ok {
		return 0, 0, ErrUnknownUpload
	}
	u.received[index] = true
	for _, got := range u.received {
		if got {
			received++
		}
	}
	return received, u.total, nil
}

// Finalize verifies all chunks arrived, concatenates them in index
// order into a single file under the scratch directory and releases the
// upload's bookkeeping and chunk directory.
func (r *Reassembler) Finalize(uploadID string) (Assembled, error) {
	r.mu.Lock()
	u, ok := r.uploads[uploadID]
	if !ok {
		r.mu.Unlock()
		return Assembled{}, ErrUnknownUpload
	}
	for i, got := range u.received {
		if !got {
			r.mu.Unlock()
			return Assembled{}, fmt.Errorf("%w: missing chunk %d of %d", ErrIncompleteUpload, i, u.total)
		}
	}
	delete(r.uploads, uploadID)
	r.mu.Unlock()

	dest := filepath.Join(r.scratch, uuid.New().String()+"-"+u.fileName)
	out, err := os.Create(dest)
	if err != nil {
		return Assembled{}, fmt.Errorf("create assembled file: %w", err)
	}
	for i := 0; i < u.total; i++ {
		if err := appendChunk(out, filepath.Join(u.dir, chunkName(i))); err != nil {
			out.Close()
			os.Remove(dest)
			return Assembled{}, err
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return Assembled{}, fmt.Errorf("close assembled file: %w", err)
	}

	if err := os.RemoveAll(u.dir); err != nil {
		logger := log.WithComponent("ingest")
		logger.Warn().Err(err).Str(log.FieldPath, u.dir).Msg("failed to remove chunk dir")
	}

	return Assembled{Path: dest, FileName: u.fileName, Tags: u.tags}, nil
}

// Cancel drops the upload's bookkeeping and removes its chunk directory.
// Cancelling an unknown upload is a no-op.
func (r *Reassembler) Cancel(uploadID string) {
	r.mu.Lock()
	u, ok := r.uploads[uploadID]
	if ok {
		delete(r.uploads, uploadID)
	}
	r.mu.Unlock()

	dir := filepath.Join(r.scratch, "chunked-"+uploadID)
	if ok {
		dir = u.dir
	}
	if err := os.RemoveAll(dir); err != nil {
		logger := log.WithComponent("ingest")
		logger.Warn().Err(err).Str(log.FieldPath, dir).Msg("failed to remove chunk dir")
	}
}

func chunkName(index int) string {
	return fmt.Sprintf("chunk_%06d", index)
}

func appendChunk(out *os.File, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open chunk: %w", err)
	}
	defer in.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("append chunk: %w", err)
	}
	return nil
}

// ParseTags accepts either a JSON string array or a comma-separated
// list and returns the cleaned tag values.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil {
		out := tags[:0]
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
