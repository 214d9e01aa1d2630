// SPDX-License-Identifier: MIT

// Package progress tracks the lifecycle of upload and transcode jobs
// in memory, keyed by upload ID.
package progress

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Stage labels are part of the client contract; the web UI matches on
// the exact strings.
const (
	StageInitializing = "Initializing upload"
	StageReceiving    = "Receiving chunks"
	StageAssembling   = "Assembling file"
	StageQueued       = "Queued for processing"
	StageFFmpeg       = "FFmpeg processing"
	StageUpload       = "Upload to R2"
	StageCompleted    = "Completed"
	StageFailed       = "Failed"
	StageCancelled    = "Cancelled"
)

// Status is the coarse job state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether s ends the job lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result carries the outcome of a completed job.
type Result struct {
	PlayerURL string `json:"player_url,omitempty"`
	UploadID  string `json:"upload_id,omitempty"`
}

// Update is a single progress frame.
type Update struct {
	Stage        string   `json:"stage"`
	CurrentChunk *int     `json:"current_chunk,omitempty"`
	TotalChunks  *int     `json:"total_chunks,omitempty"`
	Percentage   *float64 `json:"percentage,omitempty"`
	Details      string   `json:"details,omitempty"`
	Status       Status   `json:"status"`
	Result       *Result  `json:"result,omitempty"`
	Error        string   `json:"error,omitempty"`
	VideoName    string   `json:"video_name,omitempty"`
}

// Entry is an Update plus registry bookkeeping.
type Entry struct {
	ID string `json:"id"`
	Update
	CreatedAt int64 `json:"created_at"` // unix milliseconds, set on first upsert
}

// ErrNotFound is returned when no entry exists for an upload ID.
var ErrNotFound = errors.New("progress: upload not found")

// ErrNotCancellable is returned when a job is past the point of cancellation.
var ErrNotCancellable = errors.New("progress: job can no longer be cancelled")

// cleanupDelay keeps terminal entries visible long enough for pollers
// to observe the final frame.
const cleanupDelay = 10 * time.Second

// Registry is a concurrency-safe progress store.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
	after   func(time.Duration, func()) // swappable for tests
}

// NewRegistry returns an empty registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		now:     time.Now,
		after:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Publish upserts the progress frame for id. The CreatedAt of the first
// frame is preserved across subsequent frames so queue ordering is stable.
func (r *Registry) Publish(id string, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	createdAt := r.now().UnixMilli()
	if prev, ok := r.entries[id]; ok {
		createdAt = prev.CreatedAt
	}
	r.entries[id] = Entry{ID: id, Update: u, CreatedAt: createdAt}
}

// Get returns the current entry for id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Delete removes the entry for id, if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Snapshot returns all entries ordered by creation time, oldest first.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns the number of active, completed and failed entries.
func (r *Registry) Counts() (active, completed, failed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		switch e.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		default:
			active++
		}
	}
	return active, completed, failed
}

// ScheduleCleanup removes the entry for id after a grace period, unless
// the job went non-terminal again in the meantime (a new upload reusing
// the same ID).
func (r *Registry) ScheduleCleanup(id string) {
	r.after(cleanupDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.entries[id]; ok && e.Status.Terminal() {
			delete(r.entries, id)
		}
	})
}

// cancellable reports whether the job is still in a phase where the
// client may abort it. Once assembly has started the pipeline owns the
// files and cancellation races the transcoder.
func cancellable(e Entry) bool {
	if e.Status == StatusInitializing {
		return true
	}
	switch e.Stage {
	case StageInitializing, StageQueued, StageReceiving:
		return true
	}
	return false
}

// Cancel atomically checks that id may be cancelled and marks it as
// such. It returns ErrNotFound for unknown IDs and ErrNotCancellable
// once processing has begun.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if !cancellable(e) {
		return ErrNotCancellable
	}
	e.Update = Update{
		Stage:  StageCancelled,
		Status: StatusFailed,
		Error:  "Cancelled by user",
	}
	r.entries[id] = e
	return nil
}
