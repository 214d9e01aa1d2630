// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/altqx/akane/internal/media"
	"github.com/altqx/akane/internal/progress"
	"github.com/altqx/akane/internal/store"
)

type fakeProber struct {
	meta        media.Metadata
	metaErr     error
	subs        []media.SubtitleStream
	attachments []media.Attachment
	chapters    []media.ProbedChapter
}

func (f *fakeProber) Metadata(context.Context, string) (media.Metadata, error) {
	return f.meta, f.metaErr
}
func (f *fakeProber) SubtitleStreams(context.Context, string) ([]media.SubtitleStream, error) {
	return f.subs, nil
}
func (f *fakeProber) Attachments(context.Context, string) ([]media.Attachment, error) {
	return f.attachments, nil
}
func (f *fakeProber) Chapters(context.Context, string) ([]media.ProbedChapter, error) {
	return f.chapters, nil
}

type fakeEncoder struct {
	encodeErr    error
	subtitleDirs []string
	fontDirs     []string
}

func (f *fakeEncoder) EncodeToHLS(_ context.Context, _, outDir string, sourceHeight int, onProgress media.ProgressFunc) ([]media.Variant, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	variants, err := media.SelectVariants(sourceHeight)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(len(variants), len(variants), "done")
	}
	return variants, nil
}

func (f *fakeEncoder) ExtractSubtitles(_ context.Context, _, dir string, _ []media.SubtitleStream) error {
	f.subtitleDirs = append(f.subtitleDirs, dir)
	return nil
}

func (f *fakeEncoder) DumpAttachments(_ context.Context, _, dir string) error {
	f.fontDirs = append(f.fontDirs, dir)
	return nil
}

type fakeUploader struct {
	err      error
	prefixes []string
}

func (f *fakeUploader) UploadDir(_ context.Context, _, prefix string, onProgress func(int, int, string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.prefixes = append(f.prefixes, prefix)
	if onProgress != nil {
		onProgress(1, 1, "Uploaded "+prefix+"index.m3u8")
	}
	return prefix + "index.m3u8", nil
}

type fakeStore struct {
	videos      []store.Video
	subtitles   []store.Subtitle
	attachments []store.Attachment
	chapters    []store.Chapter
	videoErr    error
}

func (f *fakeStore) SaveVideo(_ context.Context, v store.Video) error {
	if f.videoErr != nil {
		return f.videoErr
	}
	f.videos = append(f.videos, v)
	return nil
}
func (f *fakeStore) SaveSubtitle(_ context.Context, s store.Subtitle) error {
	f.subtitles = append(f.subtitles, s)
	return nil
}
func (f *fakeStore) SaveAttachment(_ context.Context, a store.Attachment) error {
	f.attachments = append(f.attachments, a)
	return nil
}
func (f *fakeStore) SaveChapter(_ context.Context, c store.Chapter) error {
	f.chapters = append(f.chapters, c)
	return nil
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mkv")
	if err := os.WriteFile(path, []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(prober Prober, enc Encoder, up ObjectUploader, st MetadataStore, scratch string) (*Pipeline, *progress.Registry) {
	reg := progress.NewRegistry()
	p := New(prober, enc, up, st, reg, scratch)
	p.newID = func() string { return "vid-test" }
	return p, reg
}

func TestProcess_Success(t *testing.T) {
	scratch := t.TempDir()
	source := writeSource(t)
	prober := &fakeProber{
		meta: media.Metadata{Height: 1080, DurationSec: 1422},
		subs: []media.SubtitleStream{
			{TrackIndex: 0, Codec: "ass", Language: "eng", Default: true},
			{TrackIndex: 1, Codec: "subrip", Language: "jpn"},
		},
		attachments: []media.Attachment{{Filename: "Font.ttf", MimeType: "font/ttf"}},
		chapters:    []media.ProbedChapter{{Start: 0, End: 90, Title: "OP"}},
	}
	enc := &fakeEncoder{}
	up := &fakeUploader{}
	st := &fakeStore{}
	p, reg := newTestPipeline(prober, enc, up, st, scratch)

	p.Process(context.Background(), Job{
		UploadID:   "up1",
		SourcePath: source,
		Name:       "Episode 01",
		Tags:       []string{"anime"},
	})

	e, ok := reg.Get("up1")
	if !ok {
		t.Fatal("no terminal progress entry")
	}
	if e.Status != progress.StatusCompleted || e.Stage != progress.StageCompleted {
		t.Fatalf("terminal frame = %+v", e.Update)
	}
	if e.Result == nil || e.Result.PlayerURL != "/player/vid-test" {
		t.Fatalf("result = %+v", e.Result)
	}
	if e.VideoName != "Episode 01" {
		t.Fatalf("video name = %q", e.VideoName)
	}

	if len(st.videos) != 1 {
		t.Fatalf("videos saved = %d", len(st.videos))
	}
	v := st.videos[0]
	if v.ID != "vid-test" || v.Entrypoint != "vid-test/index.m3u8" || v.ThumbnailKey != "vid-test/thumbnail.jpg" {
		t.Fatalf("video = %+v", v)
	}
	if len(v.Resolutions) != 3 || v.Resolutions[2] != "1080p" {
		t.Fatalf("resolutions = %v", v.Resolutions)
	}
	if v.DurationSec != 1422 {
		t.Fatalf("duration = %d", v.DurationSec)
	}

	if len(st.subtitles) != 2 {
		t.Fatalf("subtitles saved = %d", len(st.subtitles))
	}
	if st.subtitles[0].StorageKey != "vid-test/subtitles/track_0.ass" {
		t.Fatalf("subtitle key = %q", st.subtitles[0].StorageKey)
	}
	if st.subtitles[1].StorageKey != "vid-test/subtitles/track_1.srt" {
		t.Fatalf("subtitle key = %q", st.subtitles[1].StorageKey)
	}
	if len(st.attachments) != 1 || st.attachments[0].StorageKey != "vid-test/fonts/Font.ttf" {
		t.Fatalf("attachments = %+v", st.attachments)
	}
	if len(st.chapters) != 1 || st.chapters[0].Title != "OP" {
		t.Fatalf("chapters = %+v", st.chapters)
	}

	if len(up.prefixes) != 1 || up.prefixes[0] != "vid-test/" {
		t.Fatalf("upload prefixes = %v", up.prefixes)
	}
	if len(enc.subtitleDirs) != 1 || !strings.HasSuffix(enc.subtitleDirs[0], filepath.Join("hls-vid-test", "subtitles")) {
		t.Fatalf("subtitle dirs = %v", enc.subtitleDirs)
	}

	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source file not cleaned up")
	}
	if _, err := os.Stat(filepath.Join(scratch, "hls-vid-test")); !os.IsNotExist(err) {
		t.Fatal("scratch dir not cleaned up")
	}
}

func TestProcess_EncodeFailure(t *testing.T) {
	source := writeSource(t)
	enc := &fakeEncoder{encodeErr: errors.New("encoder crashed")}
	st := &fakeStore{}
	p, reg := newTestPipeline(&fakeProber{meta: media.Metadata{Height: 720}}, enc, &fakeUploader{}, st, t.TempDir())

	p.Process(context.Background(), Job{UploadID: "up1", SourcePath: source, Name: "X"})

	e, ok := reg.Get("up1")
	if !ok {
		t.Fatal("no terminal progress entry")
	}
	if e.Status != progress.StatusFailed || e.Stage != progress.StageFailed {
		t.Fatalf("terminal frame = %+v", e.Update)
	}
	if !strings.HasPrefix(e.Details, "Processing failed: ") {
		t.Fatalf("details = %q", e.Details)
	}
	if len(st.videos) != 0 {
		t.Fatal("failed job must not persist a video")
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source must be cleaned up on failure")
	}
}

func TestProcess_SourceTooSmall(t *testing.T) {
	p, reg := newTestPipeline(&fakeProber{meta: media.Metadata{Height: 360}}, &fakeEncoder{}, &fakeUploader{}, &fakeStore{}, t.TempDir())

	p.Process(context.Background(), Job{UploadID: "up1", SourcePath: writeSource(t), Name: "X"})

	e, _ := reg.Get("up1")
	if e.Status != progress.StatusFailed {
		t.Fatalf("status = %s, want failed", e.Status)
	}
	if e.Error == "" {
		t.Fatal("terminal frame must carry the error")
	}
}

func TestProcess_UploadFailure(t *testing.T) {
	p, reg := newTestPipeline(
		&fakeProber{meta: media.Metadata{Height: 480}},
		&fakeEncoder{},
		&fakeUploader{err: errors.New("bucket unreachable")},
		&fakeStore{}, t.TempDir())

	p.Process(context.Background(), Job{UploadID: "up1", SourcePath: writeSource(t), Name: "X"})

	e, _ := reg.Get("up1")
	if e.Status != progress.StatusFailed || !strings.Contains(e.Error, "bucket unreachable") {
		t.Fatalf("terminal frame = %+v", e.Update)
	}
}

func TestProcess_TerminalEntryExpires(t *testing.T) {
	reg := progress.NewRegistry()
	p := New(&fakeProber{meta: media.Metadata{Height: 480}}, &fakeEncoder{}, &fakeUploader{}, &fakeStore{}, reg, t.TempDir())
	p.newID = func() string { return "vid-test" }

	p.Process(context.Background(), Job{UploadID: "up1", SourcePath: writeSource(t), Name: "X"})

	// The terminal frame is visible immediately and garbage-collected
	// by the registry after its grace period (covered in the progress
	// package tests); here we only assert it was scheduled, i.e. the
	// entry still exists right after completion.
	if _, ok := reg.Get("up1"); !ok {
		t.Fatal("terminal entry must remain visible for pollers")
	}
	// Give the real timer no chance to interfere with other tests.
	time.Sleep(10 * time.Millisecond)
}
