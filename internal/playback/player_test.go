// SPDX-License-Identifier: MIT

package playback

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/play/v1", nil)
	c := TokenCookie("abc", r)
	if !strings.Contains(c, "token=abc; Path=/; HttpOnly; Max-Age=3600") {
		t.Fatalf("cookie missing base attributes: %q", c)
	}
	if !strings.Contains(c, "SameSite=Lax") || strings.Contains(c, "Secure") {
		t.Fatalf("plain HTTP should get SameSite=Lax without Secure: %q", c)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	c = TokenCookie("abc", r)
	if !strings.Contains(c, "SameSite=None; Secure") {
		t.Fatalf("HTTPS should get SameSite=None; Secure: %q", c)
	}
}

func TestSubtitleExt(t *testing.T) {
	cases := map[string]string{
		"ass":    "ass",
		"ssa":    "ass",
		"subrip": "srt",
		"srt":    "srt",
		"webvtt": "ass",
		"":       "ass",
	}
	for codec, want := range cases {
		if got := SubtitleExt(codec); got != want {
			t.Fatalf("SubtitleExt(%q) = %q, want %q", codec, got, want)
		}
	}
}

func TestRenderPlayerPage(t *testing.T) {
	html := RenderPlayerPage(PageData{
		VideoID: "vid-1",
		Subtitles: []SubtitleTrack{
			{TrackIndex: 0, Title: "English", Codec: "ass", Default: true},
			{TrackIndex: 1, Language: "ja", Codec: "subrip"},
		},
		Fonts: []string{"OpenSans.ttf"},
		Chapters: []Chapter{
			{Start: 0, End: 90, Title: "Opening"},
			{Start: 90, End: 30, Title: "broken range"}, // filtered
		},
	})

	for _, want := range []string{
		"/hls/vid-1/index.m3u8",
		`"url":"/api/videos/vid-1/subtitles/0.ass"`,
		`"url":"/api/videos/vid-1/subtitles/1.srt"`,
		"/api/videos/vid-1/attachments/OpenSans.ttf",
		`"title":"Opening"`,
		"/api/videos/vid-1/view",
		"/api/videos/vid-1/heartbeat",
		"jassub.umd.js",
		"artplayer-plugin-chapter",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("player page missing %q", want)
		}
	}
	if strings.Contains(html, "broken range") {
		t.Fatal("invalid chapter range should be filtered out")
	}
}

func TestRenderPlayerPage_Minimal(t *testing.T) {
	html := RenderPlayerPage(PageData{VideoID: "vid-2"})

	if strings.Contains(html, "jassub") || strings.Contains(html, "const subtitles") {
		t.Fatal("page without subtitles should not load the subtitle renderer")
	}
	if strings.Contains(html, "artplayer-plugin-chapter") {
		t.Fatal("page without chapters should not load the chapter plugin")
	}
	if !strings.Contains(html, "/hls/vid-2/index.m3u8") {
		t.Fatal("page should reference the HLS master playlist")
	}
}
