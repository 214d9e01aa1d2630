// SPDX-License-Identifier: MIT

package api

import (
	"github.com/altqx/akane/internal/progress"
	"github.com/altqx/akane/internal/store"
)

// UploadAccepted acknowledges an upload whose processing continues in
// the background.
type UploadAccepted struct {
	UploadID string `json:"upload_id"`
	Message  string `json:"message"`
}

// ChunkUploadResponse acknowledges one received chunk.
type ChunkUploadResponse struct {
	UploadID   string `json:"upload_id"`
	ChunkIndex int    `json:"chunk_index"`
	Received   bool   `json:"received"`
}

// FinalizeUploadRequest names the assembled video.
type FinalizeUploadRequest struct {
	Name string  `json:"name"`
	Tags *string `json:"tags"`
}

// ProgressResponse is one SSE progress frame. It mirrors the registry
// frame minus internal bookkeeping.
type ProgressResponse struct {
	Stage        string           `json:"stage"`
	CurrentChunk int              `json:"current_chunk"`
	TotalChunks  int              `json:"total_chunks"`
	Percentage   float64          `json:"percentage"`
	Details      string           `json:"details,omitempty"`
	Status       progress.Status  `json:"status"`
	Result       *progress.Result `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func progressResponse(e progress.Entry) ProgressResponse {
	resp := ProgressResponse{
		Stage:   e.Stage,
		Details: e.Details,
		Status:  e.Status,
		Result:  e.Result,
		Error:   e.Error,
	}
	if e.CurrentChunk != nil {
		resp.CurrentChunk = *e.CurrentChunk
	}
	if e.TotalChunks != nil {
		resp.TotalChunks = *e.TotalChunks
	}
	if e.Percentage != nil {
		resp.Percentage = *e.Percentage
	}
	return resp
}

// QueueItem is one entry of the admin queue view.
type QueueItem struct {
	UploadID string `json:"upload_id"`
	ProgressResponse
	VideoName string `json:"video_name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// QueueListResponse is the full queue snapshot.
type QueueListResponse struct {
	Items          []QueueItem `json:"items"`
	ActiveCount    int         `json:"active_count"`
	CompletedCount int         `json:"completed_count"`
	FailedCount    int         `json:"failed_count"`
}

// CancelQueueResponse acknowledges a cancellation.
type CancelQueueResponse struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// VideoDto is the public projection of a stored video.
type VideoDto struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Tags                 []string `json:"tags"`
	AvailableResolutions []string `json:"available_resolutions"`
	Duration             int      `json:"duration"`
	ThumbnailURL         string   `json:"thumbnail_url"`
	PlayerURL            string   `json:"player_url"`
	ViewCount            int64    `json:"view_count"`
	CreatedAt            string   `json:"created_at"`
}

func (s *Server) videoDto(v store.Video, viewCount int64) VideoDto {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	resolutions := v.Resolutions
	if resolutions == nil {
		resolutions = []string{}
	}
	return VideoDto{
		ID:                   v.ID,
		Name:                 v.Name,
		Tags:                 tags,
		AvailableResolutions: resolutions,
		Duration:             v.DurationSec,
		ThumbnailURL:         s.cfg.PublicBaseURL + "/" + v.ThumbnailKey,
		PlayerURL:            "/player/" + v.ID,
		ViewCount:            viewCount,
		CreatedAt:            v.CreatedAt,
	}
}

// VideoListResponse is one page of videos.
type VideoListResponse struct {
	Items    []VideoDto `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
	HasNext  bool       `json:"has_next"`
	HasPrev  bool       `json:"has_prev"`
}

// UpdateVideoRequest changes a video's name and tags.
type UpdateVideoRequest struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// DeleteVideosRequest deletes videos by ID or unique ID prefix.
type DeleteVideosRequest struct {
	IDs []string `json:"ids"`
}

// DeleteVideosResponse reports the delete outcome.
type DeleteVideosResponse struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// SubtitleListResponse lists a video's subtitle tracks.
type SubtitleListResponse struct {
	Subtitles []store.Subtitle `json:"subtitles"`
}

// AttachmentListResponse lists a video's attachments.
type AttachmentListResponse struct {
	Attachments []store.Attachment `json:"attachments"`
}

// ChapterListResponse lists a video's chapters.
type ChapterListResponse struct {
	Chapters []store.Chapter `json:"chapters"`
}

// AnalyticsVideoDto is the per-video analytics overview row.
type AnalyticsVideoDto struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ViewCount    int64  `json:"view_count"`
	CreatedAt    string `json:"created_at"`
	ThumbnailURL string `json:"thumbnail_url"`
}
