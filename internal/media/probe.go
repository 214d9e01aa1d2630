// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata is the subset of ffprobe output the pipeline needs.
type Metadata struct {
	Height      int
	DurationSec int
}

// SubtitleStream describes one embedded subtitle track. TrackIndex is
// the position among subtitle streams, matching ffmpeg's 0:s:N stream
// specifier.
type SubtitleStream struct {
	TrackIndex int
	Codec      string
	Language   string
	Title      string
	Default    bool
	Forced     bool
}

// Attachment is an embedded attachment stream, typically a font.
type Attachment struct {
	Filename string
	MimeType string
}

// ProbedChapter is a chapter marker from the container.
type ProbedChapter struct {
	Start float64
	End   float64
	Title string
}

// Prober extracts stream metadata with ffprobe. Parsing is separated
// from execution so it can be tested against captured probe output.
type Prober struct {
	runner Runner
}

// NewProber returns a Prober executing ffprobe through runner.
func NewProber(runner Runner) *Prober {
	return &Prober{runner: runner}
}

// Metadata probes the first video stream's height and the container
// duration.
func (p *Prober) Metadata(ctx context.Context, input string) (Metadata, error) {
	out, err := p.runner.Run(ctx, "", "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=height:format=duration",
		"-of", "json",
		input)
	if err != nil {
		return Metadata{}, fmt.Errorf("probe metadata: %w", err)
	}
	return parseMetadata(out)
}

// SubtitleStreams lists all embedded subtitle tracks.
func (p *Prober) SubtitleStreams(ctx context.Context, input string) ([]SubtitleStream, error) {
	out, err := p.runner.Run(ctx, "", "ffprobe",
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream=index,codec_name:stream_tags=language,title:stream_disposition=default,forced",
		"-of", "json",
		input)
	if err != nil {
		return nil, fmt.Errorf("probe subtitles: %w", err)
	}
	return parseSubtitleStreams(out)
}

// Attachments lists embedded attachments.
func (p *Prober) Attachments(ctx context.Context, input string) ([]Attachment, error) {
	out, err := p.runner.Run(ctx, "", "ffprobe",
		"-v", "error",
		"-select_streams", "t",
		"-show_entries", "stream=index:stream_tags=filename,mimetype",
		"-of", "json",
		input)
	if err != nil {
		return nil, err
	}
	return parseAttachments(out)
}

// Chapters lists chapter markers.
func (p *Prober) Chapters(ctx context.Context, input string) ([]ProbedChapter, error) {
	out, err := p.runner.Run(ctx, "", "ffprobe",
		"-v", "error",
		"-show_chapters",
		"-of", "json",
		input)
	if err != nil {
		return nil, err
	}
	return parseChapters(out)
}

func parseMetadata(out []byte) (Metadata, error) {
	var doc struct {
		Streams []struct {
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return Metadata{}, fmt.Errorf("parse probe output: %w", err)
	}
	if len(doc.Streams) == 0 || doc.Streams[0].Height == 0 {
		return Metadata{}, fmt.Errorf("no video stream height in probe output")
	}
	dur, err := strconv.ParseFloat(doc.Format.Duration, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("no duration in probe output: %w", err)
	}
	return Metadata{
		Height:      doc.Streams[0].Height,
		DurationSec: int(math.Round(dur)),
	}, nil
}

func parseSubtitleStreams(out []byte) ([]SubtitleStream, error) {
	var doc struct {
		Streams []struct {
			CodecName string `json:"codec_name"`
			Tags      struct {
				Language string `json:"language"`
				Title    string `json:"title"`
			} `json:"tags"`
			Disposition struct {
				Default int `json:"default"`
				Forced  int `json:"forced"`
			} `json:"disposition"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse subtitle probe output: %w", err)
	}
	var subs []SubtitleStream
	for i, s := range doc.Streams {
		codec := s.CodecName
		if codec == "" {
			codec = "unknown"
		}
		subs = append(subs, SubtitleStream{
			TrackIndex: i,
			Codec:      codec,
			Language:   s.Tags.Language,
			Title:      s.Tags.Title,
			Default:    s.Disposition.Default == 1,
			Forced:     s.Disposition.Forced == 1,
		})
	}
	return subs, nil
}

func parseAttachments(out []byte) ([]Attachment, error) {
	var doc struct {
		Streams []struct {
			Tags struct {
				Filename string `json:"filename"`
				MimeType string `json:"mimetype"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse attachment probe output: %w", err)
	}
	var atts []Attachment
	for _, s := range doc.Streams {
		if s.Tags.Filename == "" {
			continue
		}
		mime := s.Tags.MimeType
		if mime == "" {
			mime = GuessMimeType(s.Tags.Filename)
		}
		atts = append(atts, Attachment{Filename: s.Tags.Filename, MimeType: mime})
	}
	return atts, nil
}

func parseChapters(out []byte) ([]ProbedChapter, error) {
	var doc struct {
		Chapters []struct {
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
			Tags      struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"chapters"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse chapter probe output: %w", err)
	}
	var chs []ProbedChapter
	for _, c := range doc.Chapters {
		start, err := strconv.ParseFloat(c.StartTime, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseFloat(c.EndTime, 64)
		if err != nil {
			continue
		}
		chs = append(chs, ProbedChapter{Start: start, End: end, Title: c.Tags.Title})
	}
	return chs, nil
}

// GuessMimeType maps common font extensions; anything else is served
// as an opaque blob.
func GuessMimeType(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".ttf"):
		return "font/ttf"
	case strings.HasSuffix(name, ".otf"):
		return "font/otf"
	case strings.HasSuffix(name, ".woff2"):
		return "font/woff2"
	case strings.HasSuffix(name, ".woff"):
		return "font/woff"
	}
	return "application/octet-stream"
}
