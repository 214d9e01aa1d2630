// SPDX-License-Identifier: MIT

package playback

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SubtitleTrack is one embedded subtitle stream offered to the player.
type SubtitleTrack struct {
	TrackIndex int
	Title      string
	Language   string
	Codec      string
	Default    bool
}

// Chapter is a named time range of the video.
type Chapter struct {
	Start float64
	End   float64
	Title string
}

// PageData carries everything needed to render the player page for a video.
type PageData struct {
	VideoID   string
	Subtitles []SubtitleTrack
	Fonts     []string // attachment filenames usable as libass fonts
	Chapters  []Chapter
}

// SubtitleExt maps a probe codec name onto the file extension served to
// the renderer. Anything unknown is treated as ASS, which libass parses
// leniently.
func SubtitleExt(codec string) string {
	switch codec {
	case "ass", "ssa":
		return "ass"
	case "subrip", "srt":
		return "srt"
	}
	return "ass"
}

func (s SubtitleTrack) displayName() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Language != "" {
		return s.Language
	}
	return fmt.Sprintf("Track %d", s.TrackIndex)
}

func (s SubtitleTrack) url(videoID string) string {
	return fmt.Sprintf("/api/videos/%s/subtitles/%d.%s", videoID, s.TrackIndex, SubtitleExt(s.Codec))
}

type subtitleJS struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Default bool   `json:"default"`
}

type chapterJS struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title string  `json:"title"`
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// validChapters drops entries with nonsensical time ranges.
func validChapters(chapters []Chapter) []chapterJS {
	var out []chapterJS
	for _, ch := range chapters {
		if ch.Start >= 0 && ch.End > ch.Start {
			out = append(out, chapterJS{Start: ch.Start, End: ch.End, Title: ch.Title})
		}
	}
	return out
}

// TokenCookie formats the playback token cookie. SameSite=None requires
// Secure, so it is only emitted when the request arrived over HTTPS
// (as reported by the reverse proxy).
func TokenCookie(token string, r *http.Request) string {
	attr := "SameSite=Lax"
	if r.Header.Get("X-Forwarded-Proto") == "https" {
		attr = "SameSite=None; Secure"
	}
	return fmt.Sprintf("token=%s; Path=/; HttpOnly; Max-Age=%d; %s", token, int(TokenTTL.Seconds()), attr)
}

// RenderPlayerPage builds the self-contained player HTML for a video.
// Subtitle, font and chapter data is embedded as JSON literals so the
// page needs no follow-up metadata requests.
func RenderPlayerPage(d PageData) string {
	var subs []subtitleJS
	for _, s := range d.Subtitles {
		subs = append(subs, subtitleJS{Name: s.displayName(), URL: s.url(d.VideoID), Default: s.Default})
	}
	var fonts []string
	for _, f := range d.Fonts {
		fonts = append(fonts, fmt.Sprintf("/api/videos/%s/attachments/%s", d.VideoID, f))
	}
	chapters := validChapters(d.Chapters)

	var js strings.Builder
	js.WriteString("let viewTracked = false;\nlet heartbeatStarted = false;\nlet art = null;\n")
	if len(subs) > 0 {
		fmt.Fprintf(&js, "const subtitles = %s;\n", mustJSON(subs))
	}
	if len(fonts) > 0 {
		fmt.Fprintf(&js, "const fonts = %s;\n", mustJSON(fonts))
	}
	if len(chapters) > 0 {
		fmt.Fprintf(&js, "const chapters = %s;\n", mustJSON(chapters))
	}

	plugins := []string{`artplayerPluginHlsControl({
        quality: {
            control: true,
            setting: true,
            getName: (level) => level.height + 'P',
            title: 'Quality',
            auto: 'Auto',
        },
    })`,
		"artplayerPluginAutoThumbnail({ width: 160, number: 100 })"}
	if len(chapters) > 0 {
		plugins = append(plugins, "artplayerPluginChapter({ chapters: chapters })")
	}

	fmt.Fprintf(&js, `
function init() {
    art = new Artplayer({
        container: '#artplayer',
        url: '/hls/%[1]s/index.m3u8',
        type: 'm3u8',
        autoplay: true,
        playbackRate: true,
        aspectRatio: true,
        setting: true,
        hotkey: true,
        pip: true,
        mutex: true,
        fullscreen: true,
        fullscreenWeb: true,
        subtitleOffset: true,
        miniProgressBar: true,
        autoPlayback: true,
        airplay: true,
        theme: '#ff0000',
        lang: 'en',
        moreVideoAttr: { crossOrigin: 'anonymous' },
        plugins: [
            %[2]s
        ],
        customType: {
            m3u8: function playM3u8(video, url, art) {
                if (Hls.isSupported()) {
                    if (art.hls) art.hls.destroy();
                    const hls = new Hls();
                    hls.loadSource(url);
                    hls.attachMedia(video);
                    art.hls = hls;
                    art.on('destroy', () => hls.destroy());
                } else if (video.canPlayType('application/vnd.apple.mpegurl')) {
                    video.src = url;
                } else {
                    art.notice.show = 'Unsupported playback format: m3u8';
                }
            },
        },
    });
%[3]s
    art.on('play', onFirstPlay);
    window.art = art;
}

function onFirstPlay() {
    if (!viewTracked) {
        viewTracked = true;
        fetch('/api/videos/%[1]s/view', { method: 'POST' });
    }
    if (!heartbeatStarted) {
        heartbeatStarted = true;
        startHeartbeat();
    }
}

function startHeartbeat() {
    fetch('/api/videos/%[1]s/heartbeat', { method: 'POST' });
    setInterval(() => {
        fetch('/api/videos/%[1]s/heartbeat', { method: 'POST' });
    }, 10000);
}

document.addEventListener('DOMContentLoaded', init);
`, d.VideoID, strings.Join(plugins, ",\n            "), jassubInit(d, subs, len(fonts) > 0))

	var scripts []string
	scripts = append(scripts,
		`<script src="https://cdn.jsdelivr.net/npm/hls.js/dist/hls.min.js"></script>`,
		`<script src="https://cdn.jsdelivr.net/npm/artplayer/dist/artplayer.min.js"></script>`,
		`<script src="https://cdn.jsdelivr.net/npm/artplayer-plugin-hls-control/dist/artplayer-plugin-hls-control.min.js"></script>`)
	if len(subs) > 0 {
		scripts = append(scripts, `<script src="https://cdn.jsdelivr.net/npm/jassub/dist/jassub.umd.js"></script>`)
	}
	scripts = append(scripts, `<script src="https://cdn.jsdelivr.net/npm/artplayer-plugin-auto-thumbnail/dist/artplayer-plugin-auto-thumbnail.min.js"></script>`)
	if len(chapters) > 0 {
		scripts = append(scripts, `<script src="https://cdn.jsdelivr.net/npm/artplayer-plugin-chapter/dist/artplayer-plugin-chapter.min.js"></script>`)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Video Player</title>
    <style>
        body, html { margin: 0; padding: 0; width: 100%%; height: 100%%; background: #000; overflow: hidden; }
        #artplayer { width: 100%%; height: 100%%; position: relative; }
        #artplayer canvas { position: absolute; top: 0; left: 0; pointer-events: none; z-index: 10; }
    </style>
</head>
<body>
    <div id="artplayer"></div>
    %s
    <script>%s</script>
</body>
</html>`, strings.Join(scripts, "\n    "), js.String())
}

// jassubInit wires the libass renderer to the default subtitle track
// and, with multiple tracks, adds a selector to the settings menu.
func jassubInit(d PageData, subs []subtitleJS, hasFonts bool) string {
	if len(subs) == 0 {
		return ""
	}
	def := d.Subtitles[0]
	for _, s := range d.Subtitles {
		if s.Default {
			def = s
			break
		}
	}
	fontsArray := "[]"
	if hasFonts {
		fontsArray = "fonts"
	}

	selector := ""
	if len(subs) > 1 {
		selector = `
        art.setting.add({
            name: 'subtitle',
            html: 'Subtitle',
            tooltip: subtitles.find(s => s.default)?.name || subtitles[0]?.name || 'None',
            selector: [
                { html: 'Off', value: null },
                ...subtitles.map(s => ({ html: s.name, url: s.url, default: s.default }))
            ],
            onSelect: function(item) {
                if (item.value === null) {
                    if (window.jassub) {
                        window.jassub.freeTrack();
                    }
                } else if (item.url && window.jassub) {
                    window.jassub.setTrackByUrl(item.url);
                }
                return item.html;
            },
        });`
	}

	return fmt.Sprintf(`
    art.on('ready', function() {
        try {
            window.jassub = new JASSUB({
                video: art.video,
                subUrl: %s,
                workerUrl: 'https://cdn.jsdelivr.net/npm/jassub/dist/jassub-worker.js',
                wasmUrl: 'https://cdn.jsdelivr.net/npm/jassub/dist/jassub-worker.wasm',
                fonts: %s,
                fallbackFont: 'Arial',
            });
        } catch (e) {
            console.error('JASSUB initialization error:', e);
        }%s
    });`, mustJSON(def.url(d.VideoID)), fontsArray, selector)
}
