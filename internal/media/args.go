// SPDX-License-Identifier: MIT

package media

import (
	"path/filepath"
	"strconv"
)

// gopSize aligns keyframes with 4-second HLS segments at 24 fps
// together with the forced keyframe expression below.
const gopSize = 48

// VariantArgs builds the full ffmpeg argument list for encoding one
// HLS variant into outDir/{label}/.
func VariantArgs(input, encoder string, v Variant, outDir string) []string {
	family := DetectFamily(encoder)
	segDir := filepath.Join(outDir, v.Label)

	args := []string{"-loglevel", "error", "-y"}
	args = append(args, family.hwaccelArgs()...)
	args = append(args, "-i", input)
	args = append(args, "-c:v", encoder)
	args = append(args, family.codecArgs()...)
	args = append(args,
		"-b:v", v.Bitrate(),
		"-maxrate", v.Maxrate(),
		"-bufsize", v.Bufsize(),
		"-vf", family.scaleFilter(v.Height),
		"-pix_fmt", family.pixFmt(),
		"-g", strconv.Itoa(gopSize),
		"-keyint_min", strconv.Itoa(gopSize),
		"-sc_threshold", "0",
		"-force_key_frames", "expr:gte(t,n_forced*4)",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		// Subtitles are extracted separately, never burned into HLS.
		"-sn",
		"-hls_time", "4",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "mpegts",
		"-start_number", "0",
		"-hls_segment_filename", filepath.Join(segDir, "segment_%03d.ts"),
		filepath.Join(segDir, "index.m3u8"),
	)
	return args
}

// ThumbnailArgs builds the ffmpeg argument list for grabbing the first
// frame as a JPEG. Hardware-decoded frames are downloaded back to
// system memory for the software JPEG encoder.
func ThumbnailArgs(input, encoder, outPath string) []string {
	family := DetectFamily(encoder)

	args := []string{"-loglevel", "error", "-y"}
	args = append(args, family.hwaccelArgs()...)
	args = append(args, "-ss", "0", "-i", input, "-vframes", "1")
	if family.hardware() {
		args = append(args, "-vf", "hwdownload,format=nv12")
	}
	args = append(args, "-q:v", "20", outPath)
	return args
}

// SubtitleExtractArgs builds the ffmpeg argument list for extracting
// one subtitle stream. subtitleIndex counts subtitle streams only, not
// all streams.
func SubtitleExtractArgs(input string, subtitleIndex int, codec, outPath string) []string {
	return []string{
		"-v", "error", "-y",
		"-i", input,
		"-map", "0:s:" + strconv.Itoa(subtitleIndex),
		"-c:s", subtitleFormat(codec),
		outPath,
	}
}

func subtitleFormat(codec string) string {
	switch codec {
	case "ass", "ssa":
		return "ass"
	case "subrip", "srt":
		return "srt"
	}
	return "ass"
}

// AttachmentDumpArgs builds the ffmpeg argument list for dumping all
// attachment streams. ffmpeg writes them into its working directory,
// so the caller must run this with the fonts directory as cwd.
func AttachmentDumpArgs(input string) []string {
	return []string{
		"-v", "error", "-y",
		"-dump_attachment:t", "",
		"-i", input,
	}
}
