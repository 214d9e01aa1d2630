// SPDX-License-Identifier: MIT

// Package media probes source files and transcodes them into an HLS
// rendition ladder using ffmpeg and ffprobe.
package media

import (
	"errors"
	"fmt"
)

// Variant is one rendition of the HLS ladder.
type Variant struct {
	Label       string
	Height      int
	BitrateKbps int
}

// ErrSourceTooSmall is returned when the source height is below the
// smallest ladder rung.
var ErrSourceTooSmall = errors.New("media: no suitable variants for source height")

// ladder is ordered ascending; selection keeps that order so variant
// lists and master playlists are deterministic.
var ladder = []Variant{
	{Label: "480p", Height: 480, BitrateKbps: 1000},
	{Label: "720p", Height: 720, BitrateKbps: 2500},
	{Label: "1080p", Height: 1080, BitrateKbps: 5000},
	{Label: "1440p", Height: 1440, BitrateKbps: 8000},
}

// SelectVariants returns the ladder rungs at or below the source
// height. Upscaling is never offered.
func SelectVariants(sourceHeight int) ([]Variant, error) {
	var out []Variant
	for _, v := range ladder {
		if v.Height <= sourceHeight {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %d", ErrSourceTooSmall, sourceHeight)
	}
	return out, nil
}

// Bitrate returns the target bitrate as an ffmpeg argument.
func (v Variant) Bitrate() string {
	return fmt.Sprintf("%dk", v.BitrateKbps)
}

// Maxrate is 1.5x the target, giving the rate controller VBR headroom.
func (v Variant) Maxrate() string {
	return fmt.Sprintf("%dk", v.BitrateKbps*3/2)
}

// Bufsize is 2x the target bitrate.
func (v Variant) Bufsize() string {
	return fmt.Sprintf("%dk", v.BitrateKbps*2)
}

// Bandwidth is the EXT-X-STREAM-INF BANDWIDTH value in bits per second.
func (v Variant) Bandwidth() int {
	return v.BitrateKbps * 1000
}

// ApproxWidth assumes 16:9 content; the master playlist advertises it
// alongside the exact ladder height.
func ApproxWidth(height int) int {
	return height * 16 / 9
}
