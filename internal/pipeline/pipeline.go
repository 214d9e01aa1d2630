// SPDX-License-Identifier: MIT

// Package pipeline turns an assembled upload into a published video:
// probe, transcode to HLS, extract subtitles and fonts, push to the
// object store and persist metadata.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/media"
	"github.com/altqx/akane/internal/metrics"
	"github.com/altqx/akane/internal/progress"
	"github.com/altqx/akane/internal/store"
)

// Encoder is the transcoding surface the pipeline drives.
type Encoder interface {
	EncodeToHLS(ctx context.Context, input, outDir string, sourceHeight int, onProgress media.ProgressFunc) ([]media.Variant, error)
	ExtractSubtitles(ctx context.Context, input, dir string, subs []media.SubtitleStream) error
	DumpAttachments(ctx context.Context, input, dir string) error
}

// Prober inspects the source file.
type Prober interface {
	Metadata(ctx context.Context, path string) (media.Metadata, error)
	SubtitleStreams(ctx context.Context, path string) ([]media.SubtitleStream, error)
	Attachments(ctx context.Context, path string) ([]media.Attachment, error)
	Chapters(ctx context.Context, path string) ([]media.ProbedChapter, error)
}

// ObjectUploader pushes a finished output tree to the object store.
type ObjectUploader interface {
	UploadDir(ctx context.Context, dir, prefix string, onProgress func(done, total int, details string)) (string, error)
}

// MetadataStore persists the published video and its tracks.
type MetadataStore interface {
	SaveVideo(ctx context.Context, v store.Video) error
	SaveSubtitle(ctx context.Context, sub store.Subtitle) error
	SaveAttachment(ctx context.Context, att store.Attachment) error
	SaveChapter(ctx context.Context, ch store.Chapter) error
}

// Job is one finalized upload awaiting processing.
type Job struct {
	UploadID   string
	SourcePath string
	Name       string
	Tags       []string
}

// Pipeline processes jobs sequentially within, concurrently across
// goroutines; the encoder's own semaphore bounds ffmpeg fan-out.
type Pipeline struct {
	prober   Prober
	encoder  Encoder
	uploader ObjectUploader
	store    MetadataStore
	registry *progress.Registry
	scratch  string

	// newID is swappable in tests.
	newID func() string
}

// New wires a Pipeline.
func New(prober Prober, encoder Encoder, uploader ObjectUploader, st MetadataStore, registry *progress.Registry, scratch string) *Pipeline {
	return &Pipeline{
		prober:   prober,
		encoder:  encoder,
		uploader: uploader,
		store:    st,
		registry: registry,
		scratch:  scratch,
		newID:    uuid.NewString,
	}
}

// Process runs one job to completion, publishing progress along the
// way. The terminal frame stays visible for a grace period and is
// then dropped from the registry.
func (p *Pipeline) Process(ctx context.Context, job Job) {
	ctx = log.ContextWithJobID(ctx, job.UploadID)
	logger := log.WithComponentFromContext(ctx, "pipeline")

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic_value", rec).Msg("pipeline panic")
			p.fail(job, fmt.Errorf("internal error: %v", rec))
		}
	}()

	videoID, err := p.run(ctx, job)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldUploadID, job.UploadID).Msg("processing failed")
		metrics.PipelineJobs.WithLabelValues("failed").Inc()
		p.fail(job, err)
		return
	}

	logger.Info().
		Str(log.FieldUploadID, job.UploadID).
		Str(log.FieldVideoID, videoID).
		Msg("processing complete")
	metrics.PipelineJobs.WithLabelValues("completed").Inc()

	pct := 100.0
	one := 1
	p.registry.Publish(job.UploadID, progress.Update{
		Stage:        progress.StageCompleted,
		CurrentChunk: &one,
		TotalChunks:  &one,
		Percentage:   &pct,
		Details:      "Upload and processing complete",
		Status:       progress.StatusCompleted,
		Result: &progress.Result{
			PlayerURL: "/player/" + videoID,
			UploadID:  job.UploadID,
		},
		VideoName: job.Name,
	})
	p.registry.ScheduleCleanup(job.UploadID)
}

func (p *Pipeline) fail(job Job, err error) {
	p.registry.Publish(job.UploadID, progress.Update{
		Stage:     progress.StageFailed,
		Details:   "Processing failed: " + err.Error(),
		Status:    progress.StatusFailed,
		Error:     err.Error(),
		VideoName: job.Name,
	})
	p.registry.ScheduleCleanup(job.UploadID)
}

func (p *Pipeline) run(ctx context.Context, job Job) (string, error) {
	logger := log.WithComponentFromContext(ctx, "pipeline")
	videoID := p.newID()
	hlsDir := filepath.Join(p.scratch, "hls-"+videoID)

	defer func() {
		// Scratch is disposable either way; artifacts live in the
		// object store once uploaded.
		if err := os.RemoveAll(hlsDir); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, hlsDir).Msg("scratch cleanup failed")
		}
		if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str(log.FieldPath, job.SourcePath).Msg("source cleanup failed")
		}
	}()

	meta, err := p.prober.Metadata(ctx, job.SourcePath)
	if err != nil {
		return "", fmt.Errorf("probe source: %w", err)
	}
	variants, err := media.SelectVariants(meta.Height)
	if err != nil {
		return "", err
	}

	p.publishStage(job, progress.StageFFmpeg, 0, len(variants), "Starting encoding...")
	if _, err := p.encoder.EncodeToHLS(ctx, job.SourcePath, hlsDir, meta.Height, func(done, total int, details string) {
		p.publishStage(job, progress.StageFFmpeg, done, total, details)
	}); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	// Subtitle and attachment extraction is best effort: a source
	// without them still publishes.
	subs, err := p.prober.SubtitleStreams(ctx, job.SourcePath)
	if err != nil {
		logger.Warn().Err(err).Msg("subtitle probe failed")
		subs = nil
	}
	attachments, _ := p.prober.Attachments(ctx, job.SourcePath)
	chapters, _ := p.prober.Chapters(ctx, job.SourcePath)

	if len(subs) > 0 {
		if err := p.encoder.ExtractSubtitles(ctx, job.SourcePath, filepath.Join(hlsDir, "subtitles"), subs); err != nil {
			return "", fmt.Errorf("extract subtitles: %w", err)
		}
	}
	if len(attachments) > 0 {
		if err := p.encoder.DumpAttachments(ctx, job.SourcePath, filepath.Join(hlsDir, "fonts")); err != nil {
			logger.Warn().Err(err).Msg("attachment dump failed")
		}
	}

	p.publishStage(job, progress.StageUpload, 0, 1, "Uploading segments to storage...")
	masterKey, err := p.uploader.UploadDir(ctx, hlsDir, videoID+"/", func(done, total int, details string) {
		p.publishStage(job, progress.StageUpload, done, total, details)
	})
	if err != nil {
		return "", fmt.Errorf("upload artifacts: %w", err)
	}

	labels := make([]string, len(variants))
	for i, v := range variants {
		labels[i] = v.Label
	}
	if err := p.store.SaveVideo(ctx, store.Video{
		ID:           videoID,
		Name:         job.Name,
		Tags:         job.Tags,
		Resolutions:  labels,
		DurationSec:  meta.DurationSec,
		ThumbnailKey: videoID + "/thumbnail.jpg",
		Entrypoint:   masterKey,
	}); err != nil {
		return "", fmt.Errorf("persist video: %w", err)
	}

	for _, sub := range subs {
		if err := p.store.SaveSubtitle(ctx, store.Subtitle{
			VideoID:    videoID,
			TrackIndex: sub.TrackIndex,
			Language:   sub.Language,
			Title:      sub.Title,
			Codec:      sub.Codec,
			StorageKey: fmt.Sprintf("%s/subtitles/%s", videoID, media.SubtitleFilename(sub.TrackIndex, sub.Codec)),
			Default:    sub.Default,
			Forced:     sub.Forced,
		}); err != nil {
			return "", fmt.Errorf("persist subtitle %d: %w", sub.TrackIndex, err)
		}
	}
	for _, att := range attachments {
		if err := p.store.SaveAttachment(ctx, store.Attachment{
			VideoID:    videoID,
			Filename:   att.Filename,
			MimeType:   att.MimeType,
			StorageKey: fmt.Sprintf("%s/fonts/%s", videoID, att.Filename),
		}); err != nil {
			return "", fmt.Errorf("persist attachment %s: %w", att.Filename, err)
		}
	}
	for i, ch := range chapters {
		if err := p.store.SaveChapter(ctx, store.Chapter{
			VideoID:      videoID,
			ChapterIndex: i,
			StartTime:    ch.Start,
			EndTime:      ch.End,
			Title:        ch.Title,
		}); err != nil {
			return "", fmt.Errorf("persist chapter %d: %w", i, err)
		}
	}

	return videoID, nil
}

func (p *Pipeline) publishStage(job Job, stage string, current, total int, details string) {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	p.registry.Publish(job.UploadID, progress.Update{
		Stage:        stage,
		CurrentChunk: &current,
		TotalChunks:  &total,
		Percentage:   &pct,
		Details:      details,
		Status:       progress.StatusProcessing,
		VideoName:    job.Name,
	})
}
