// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"errors"
	"testing"
)

// fakeRunner serves canned stdout per tool invocation and records calls.
type fakeRunner struct {
	out   map[string][]byte // keyed by first arg after the fixed flags, crude but enough
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	call := append([]string{dir, name}, args...)
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	for key, out := range f.out {
		for _, a := range args {
			if a == key {
				return out, nil
			}
		}
	}
	return []byte("{}"), nil
}

const metadataJSON = `{
    "streams": [ { "height": 1080 } ],
    "format": { "duration": "1441.498000" }
}`

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata([]byte(metadataJSON))
	if err != nil {
		t.Fatalf("parseMetadata() = %v", err)
	}
	if md.Height != 1080 {
		t.Fatalf("Height = %d, want 1080", md.Height)
	}
	if md.DurationSec != 1441 {
		t.Fatalf("DurationSec = %d, want 1441", md.DurationSec)
	}

	if _, err := parseMetadata([]byte(`{"streams":[],"format":{"duration":"10"}}`)); err == nil {
		t.Fatal("missing video stream should be an error")
	}
	if _, err := parseMetadata([]byte(`{"streams":[{"height":720}],"format":{}}`)); err == nil {
		t.Fatal("missing duration should be an error")
	}
}

const subtitleJSON = `{
    "streams": [
        {
            "index": 2,
            "codec_name": "ass",
            "disposition": { "default": 1, "forced": 0 },
            "tags": { "language": "eng", "title": "English (Full)" }
        },
        {
            "index": 3,
            "codec_name": "subrip",
            "disposition": { "default": 0, "forced": 1 },
            "tags": { "language": "jpn" }
        }
    ]
}`

func TestParseSubtitleStreams(t *testing.T) {
	subs, err := parseSubtitleStreams([]byte(subtitleJSON))
	if err != nil {
		t.Fatalf("parseSubtitleStreams() = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d streams, want 2", len(subs))
	}

	// TrackIndex is the subtitle-relative position, not the absolute
	// container stream index, so it matches the 0:s:N mapping used for
	// extraction.
	if subs[0].TrackIndex != 0 || subs[1].TrackIndex != 1 {
		t.Fatalf("track indexes = %d,%d, want 0,1", subs[0].TrackIndex, subs[1].TrackIndex)
	}
	if subs[0].Codec != "ass" || !subs[0].Default || subs[0].Forced {
		t.Fatalf("unexpected first stream: %+v", subs[0])
	}
	if subs[0].Title != "English (Full)" || subs[0].Language != "eng" {
		t.Fatalf("unexpected first stream tags: %+v", subs[0])
	}
	if subs[1].Codec != "subrip" || subs[1].Default || !subs[1].Forced {
		t.Fatalf("unexpected second stream: %+v", subs[1])
	}
}

const attachmentJSON = `{
    "streams": [
        { "tags": { "filename": "OpenSans-Bold.TTF" } },
        { "tags": { "filename": "custom.bin", "mimetype": "application/x-font" } },
        { "tags": {} }
    ]
}`

func TestParseAttachments(t *testing.T) {
	atts, err := parseAttachments([]byte(attachmentJSON))
	if err != nil {
		t.Fatalf("parseAttachments() = %v", err)
	}
	if len(atts) != 2 {
		t.Fatalf("got %d attachments, want 2 (nameless stream skipped)", len(atts))
	}
	if atts[0].MimeType != "font/ttf" {
		t.Fatalf("guessed mimetype = %q, want font/ttf", atts[0].MimeType)
	}
	if atts[1].MimeType != "application/x-font" {
		t.Fatalf("declared mimetype should win, got %q", atts[1].MimeType)
	}
}

const chapterJSON = `{
    "chapters": [
        { "start_time": "0.000000", "end_time": "89.500000", "tags": { "title": "Opening" } },
        { "start_time": "89.500000", "end_time": "1320.000000", "tags": {} },
        { "start_time": "bogus", "end_time": "10", "tags": { "title": "broken" } }
    ]
}`

func TestParseChapters(t *testing.T) {
	chs, err := parseChapters([]byte(chapterJSON))
	if err != nil {
		t.Fatalf("parseChapters() = %v", err)
	}
	if len(chs) != 2 {
		t.Fatalf("got %d chapters, want 2 (unparsable one dropped)", len(chs))
	}
	if chs[0].Title != "Opening" || chs[0].End != 89.5 {
		t.Fatalf("unexpected first chapter: %+v", chs[0])
	}
	if chs[1].Title != "" {
		t.Fatalf("untitled chapter should have empty title, got %q", chs[1].Title)
	}
}

func TestGuessMimeType(t *testing.T) {
	cases := map[string]string{
		"font.ttf":    "font/ttf",
		"FONT.TTF":    "font/ttf",
		"font.otf":    "font/otf",
		"FONT.OTF":    "font/otf",
		"font.woff":   "font/woff",
		"font.woff2":  "font/woff2",
		"FONT.WOFF2":  "font/woff2",
		"mystery.dat": "application/octet-stream",
	}
	for name, want := range cases {
		if got := GuessMimeType(name); got != want {
			t.Fatalf("GuessMimeType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestProber_AttachmentsSurfaceProbeFailure(t *testing.T) {
	p := NewProber(&fakeRunner{err: errors.New("ffprobe exploded")})
	if atts, err := p.Attachments(context.Background(), "in.mkv"); err == nil || atts != nil {
		t.Fatalf("Attachments() on probe failure = %v, %v, want nil, error", atts, err)
	}
	if chs, err := p.Chapters(context.Background(), "in.mkv"); err == nil || chs != nil {
		t.Fatalf("Chapters() on probe failure = %v, %v, want nil, error", chs, err)
	}
}

func TestProber_MetadataSurfacesFailure(t *testing.T) {
	p := NewProber(&fakeRunner{err: errors.New("ffprobe exploded")})
	if _, err := p.Metadata(context.Background(), "in.mkv"); err == nil {
		t.Fatal("Metadata() should surface probe failures")
	}
	if _, err := p.SubtitleStreams(context.Background(), "in.mkv"); err == nil {
		t.Fatal("SubtitleStreams() should surface probe failures")
	}
}
