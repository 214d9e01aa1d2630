// SPDX-License-Identifier: MIT

// Package presence counts concurrent viewers per video from player
// heartbeats.
package presence

import (
	"sync"
	"time"
)

// window is how long a viewer counts as active after their last
// heartbeat. The player sends one every 10 seconds.
const window = 30 * time.Second

// Tracker keeps the last heartbeat per viewer per video. Eviction is
// lazy: stale entries are dropped whenever a snapshot is taken.
type Tracker struct {
	mu     sync.Mutex
	videos map[string]map[string]time.Time // videoID -> viewer key -> last seen
	now    func() time.Time
}

// NewTracker returns an empty Tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{
		videos: make(map[string]map[string]time.Time),
		now:    time.Now,
	}
}

// viewerKey identifies a viewer well enough for counting. Two tabs on
// the same machine count once.
func viewerKey(ip, userAgent string) string {
	return ip + "|" + userAgent
}

// Heartbeat records that a viewer is watching videoID right now.
func (t *Tracker) Heartbeat(videoID, ip, userAgent string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	viewers, ok := t.videos[videoID]
	if !ok {
		viewers = make(map[string]time.Time)
		t.videos[videoID] = viewers
	}
	viewers[viewerKey(ip, userAgent)] = t.now()
}

// Snapshot evicts viewers whose last heartbeat is older than the
// activity window and returns the active viewer count per video.
// Videos with no active viewers are absent from the result.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	out := make(map[string]int, len(t.videos))
	for videoID, viewers := range t.videos {
		for key, last := range viewers {
			if last.Before(cutoff) {
				delete(viewers, key)
			}
		}
		if len(viewers) == 0 {
			delete(t.videos, videoID)
			continue
		}
		out[videoID] = len(viewers)
	}
	return out
}
