// SPDX-License-Identifier: MIT

// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FFmpegStarts counts encode process launches by encoder family.
	FFmpegStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akane_ffmpeg_starts_total",
		Help: "Total ffmpeg encode processes started",
	}, []string{"family"})

	// FFmpegFailures counts encode processes that exited non-zero.
	FFmpegFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akane_ffmpeg_failures_total",
		Help: "Total ffmpeg encode processes that failed",
	}, []string{"family"})

	// ActiveEncodes tracks currently running encode processes.
	ActiveEncodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "akane_active_encodes",
		Help: "Number of ffmpeg encode processes currently running",
	})

	// ArtifactUploads counts objects pushed to the store.
	ArtifactUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akane_artifact_uploads_total",
		Help: "Total artifacts uploaded to the object store",
	})

	// ArtifactUploadFailures counts failed object uploads.
	ArtifactUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akane_artifact_upload_failures_total",
		Help: "Total artifact uploads that failed",
	})

	// TokenVerifications counts playback token checks by outcome.
	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akane_token_verifications_total",
		Help: "Total playback token verifications",
	}, []string{"outcome"})

	// PipelineJobs counts background pipeline runs by result.
	PipelineJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akane_pipeline_jobs_total",
		Help: "Total transcode pipeline jobs by result",
	}, []string{"result"})
)
