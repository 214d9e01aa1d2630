// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/metrics"
)

// ProgressFunc receives encode progress: variants finished so far, the
// total variant count and a human-readable detail line.
type ProgressFunc func(done, total int, details string)

// Transcoder fans out ffmpeg work per variant. All jobs in the process
// share one weighted semaphore so the configured encode limit holds
// across concurrent uploads.
type Transcoder struct {
	runner  Runner
	encoder string
	sem     *semaphore.Weighted
}

// NewTranscoder returns a Transcoder using encoder and allowing at
// most maxConcurrent ffmpeg encode processes at once.
func NewTranscoder(runner Runner, encoder string, maxConcurrent int) *Transcoder {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Transcoder{
		runner:  runner,
		encoder: encoder,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// EncodeToHLS transcodes input into an HLS tree under outDir: one
// subdirectory per selected variant plus thumbnail.jpg and the master
// playlist index.m3u8. It returns the selected variants.
//
// A thumbnail failure is logged but does not fail the encode; a failed
// variant fails the whole job.
func (t *Transcoder) EncodeToHLS(ctx context.Context, input, outDir string, sourceHeight int, onProgress ProgressFunc) ([]Variant, error) {
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}
	variants, err := SelectVariants(sourceHeight)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create hls dir: %w", err)
	}

	logger := log.WithComponentFromContext(ctx, "transcoder")
	total := len(variants)

	// Progress reports the count of finished variants. The counter and
	// the callback share one lock so concurrent variants cannot publish
	// frames out of order.
	var progressMu sync.Mutex
	completed := 0
	report := func(delta int, details string) {
		progressMu.Lock()
		completed += delta
		onProgress(completed, total, details)
		progressMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range variants {
		g.Go(func() error {
			if err := t.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer t.sem.Release(1)

			if err := os.MkdirAll(filepath.Join(outDir, v.Label), 0o755); err != nil {
				return fmt.Errorf("create variant dir: %w", err)
			}

			report(0, fmt.Sprintf("Encoding variant: %s (%dp)", v.Label, v.Height))
			logger.Info().
				Str(log.FieldVariant, v.Label).
				Str(log.FieldEncoder, t.encoder).
				Str(log.FieldResolution, strconv.Itoa(v.Height)+"p").
				Msg("encoding variant")

			metrics.FFmpegStarts.WithLabelValues(DetectFamily(t.encoder).String()).Inc()
			metrics.ActiveEncodes.Inc()
			defer metrics.ActiveEncodes.Dec()

			if _, err := t.runner.Run(gctx, "", "ffmpeg", VariantArgs(input, t.encoder, v, outDir)...); err != nil {
				metrics.FFmpegFailures.WithLabelValues(DetectFamily(t.encoder).String()).Inc()
				return fmt.Errorf("encode variant %s: %w", v.Label, err)
			}

			report(1, "Encoded variant: "+v.Label)
			return nil
		})
	}

	// Thumbnail runs alongside the variants but does not hold an
	// encode slot; grabbing one frame is cheap next to a full encode.
	g.Go(func() error {
		thumbPath := filepath.Join(outDir, "thumbnail.jpg")
		if _, err := t.runner.Run(gctx, "", "ffmpeg", ThumbnailArgs(input, t.encoder, thumbPath)...); err != nil {
			logger.Error().Err(err).Msg("thumbnail generation failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := WriteMasterPlaylist(filepath.Join(outDir, "index.m3u8"), variants); err != nil {
		return nil, err
	}
	return variants, nil
}

// ExtractSubtitles writes each subtitle stream as track_{n}.{ext}
// under dir. A single failed track is logged and skipped; the
// remaining tracks still play.
func (t *Transcoder) ExtractSubtitles(ctx context.Context, input, dir string, subs []SubtitleStream) error {
	if len(subs) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subtitles dir: %w", err)
	}
	logger := log.WithComponentFromContext(ctx, "transcoder")
	for _, sub := range subs {
		outPath := filepath.Join(dir, SubtitleFilename(sub.TrackIndex, sub.Codec))
		if _, err := t.runner.Run(ctx, "", "ffmpeg", SubtitleExtractArgs(input, sub.TrackIndex, sub.Codec, outPath)...); err != nil {
			logger.Error().Err(err).Int("track", sub.TrackIndex).Msg("failed to extract subtitle stream")
		}
	}
	return nil
}

// SubtitleFilename is the on-disk and object-store name for an
// extracted subtitle track.
func SubtitleFilename(trackIndex int, codec string) string {
	return fmt.Sprintf("track_%d.%s", trackIndex, subtitleFormat(codec))
}

// DumpAttachments extracts all attachment streams (fonts) into dir.
// ffmpeg exits non-zero here even on partial success, so failures are
// logged and the files that did land are used.
func (t *Transcoder) DumpAttachments(ctx context.Context, input, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fonts dir: %w", err)
	}
	if _, err := t.runner.Run(ctx, dir, "ffmpeg", AttachmentDumpArgs(input)...); err != nil {
		logger := log.WithComponentFromContext(ctx, "transcoder")
		logger.Warn().Err(err).Msg("attachment extraction reported errors")
	}
	return nil
}
