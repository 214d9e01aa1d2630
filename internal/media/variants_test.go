// SPDX-License-Identifier: MIT

package media

import (
	"errors"
	"strings"
	"testing"
)

func TestSelectVariants(t *testing.T) {
	cases := []struct {
		height int
		want   []string
	}{
		{479, nil},
		{480, []string{"480p"}},
		{720, []string{"480p", "720p"}},
		{1080, []string{"480p", "720p", "1080p"}},
		{2160, []string{"480p", "720p", "1080p", "1440p"}},
	}
	for _, c := range cases {
		got, err := SelectVariants(c.height)
		if c.want == nil {
			if !errors.Is(err, ErrSourceTooSmall) {
				t.Fatalf("SelectVariants(%d) err = %v, want ErrSourceTooSmall", c.height, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SelectVariants(%d) = %v", c.height, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("SelectVariants(%d) returned %d variants, want %d", c.height, len(got), len(c.want))
		}
		for i, label := range c.want {
			if got[i].Label != label {
				t.Fatalf("SelectVariants(%d)[%d] = %q, want %q", c.height, i, got[i].Label, label)
			}
		}
	}
}

func TestVariantRates(t *testing.T) {
	v := Variant{Label: "720p", Height: 720, BitrateKbps: 2500}
	if v.Bitrate() != "2500k" || v.Maxrate() != "3750k" || v.Bufsize() != "5000k" {
		t.Fatalf("rates = %s/%s/%s", v.Bitrate(), v.Maxrate(), v.Bufsize())
	}
	if v.Bandwidth() != 2_500_000 {
		t.Fatalf("Bandwidth() = %d", v.Bandwidth())
	}
}

func TestMasterPlaylist(t *testing.T) {
	variants, err := SelectVariants(1080)
	if err != nil {
		t.Fatalf("SelectVariants() = %v", err)
	}
	got := MasterPlaylist(variants)

	want := "#EXTM3U\n#EXT-X-VERSION:3\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=853x480\n480p/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\n720p/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n1080p/index.m3u8\n"
	if got != want {
		t.Fatalf("MasterPlaylist() =\n%s\nwant:\n%s", got, want)
	}
}

func TestDetectFamily(t *testing.T) {
	cases := map[string]Family{
		"h264_nvenc": FamilyNVENC,
		"hevc_nvenc": FamilyNVENC,
		"h264_vaapi": FamilyVAAPI,
		"hevc_qsv":   FamilyQSV,
		"libx264":    FamilyCPU,
		"libx265":    FamilyCPU,
	}
	for encoder, want := range cases {
		if got := DetectFamily(encoder); got != want {
			t.Fatalf("DetectFamily(%q) = %v, want %v", encoder, got, want)
		}
	}
}

func TestVariantArgs(t *testing.T) {
	v := Variant{Label: "720p", Height: 720, BitrateKbps: 2500}

	cpu := strings.Join(VariantArgs("/tmp/in.mkv", "libx264", v, "/tmp/out"), " ")
	for _, want := range []string{
		"-c:v libx264",
		"-vf scale=-2:720",
		"-pix_fmt yuv420p",
		"-b:v 2500k -maxrate 3750k -bufsize 5000k",
		"-g 48 -keyint_min 48 -sc_threshold 0",
		"-force_key_frames expr:gte(t,n_forced*4)",
		"-c:a aac -b:a 128k -ac 2 -sn",
		"-hls_time 4 -hls_list_size 0 -hls_playlist_type vod -hls_segment_type mpegts -start_number 0",
		"/tmp/out/720p/segment_%03d.ts /tmp/out/720p/index.m3u8",
	} {
		if !strings.Contains(cpu, want) {
			t.Fatalf("cpu args missing %q in:\n%s", want, cpu)
		}
	}
	if strings.Contains(cpu, "-hwaccel") {
		t.Fatal("cpu encode should not request hwaccel")
	}

	nvenc := strings.Join(VariantArgs("/tmp/in.mkv", "h264_nvenc", v, "/tmp/out"), " ")
	for _, want := range []string{
		"-hwaccel cuda -hwaccel_output_format cuda",
		"-vf scale_cuda=-2:720",
		"-pix_fmt cuda",
		"-preset p3",
	} {
		if !strings.Contains(nvenc, want) {
			t.Fatalf("nvenc args missing %q in:\n%s", want, nvenc)
		}
	}
}

func TestThumbnailArgs(t *testing.T) {
	cpu := strings.Join(ThumbnailArgs("/tmp/in.mkv", "libx264", "/tmp/out/thumbnail.jpg"), " ")
	if !strings.Contains(cpu, "-ss 0 -i /tmp/in.mkv -vframes 1 -q:v 20") {
		t.Fatalf("cpu thumbnail args wrong:\n%s", cpu)
	}
	if strings.Contains(cpu, "hwdownload") {
		t.Fatal("cpu thumbnail should not download frames")
	}

	gpu := strings.Join(ThumbnailArgs("/tmp/in.mkv", "hevc_vaapi", "/tmp/out/thumbnail.jpg"), " ")
	if !strings.Contains(gpu, "-vf hwdownload,format=nv12") {
		t.Fatalf("gpu thumbnail must download frames for the jpeg encoder:\n%s", gpu)
	}
}

func TestSubtitleExtractArgs(t *testing.T) {
	args := strings.Join(SubtitleExtractArgs("/tmp/in.mkv", 1, "subrip", "/tmp/subs/track_1.srt"), " ")
	if !strings.Contains(args, "-map 0:s:1 -c:s srt") {
		t.Fatalf("subtitle args wrong:\n%s", args)
	}

	args = strings.Join(SubtitleExtractArgs("/tmp/in.mkv", 0, "webvtt", "/tmp/subs/track_0.ass"), " ")
	if !strings.Contains(args, "-c:s ass") {
		t.Fatalf("unknown codecs should fall back to ass:\n%s", args)
	}
}
