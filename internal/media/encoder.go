// SPDX-License-Identifier: MIT

package media

import (
	"strconv"
	"strings"
)

// Family groups ffmpeg encoders by their hardware pipeline. It decides
// hwaccel flags, the scaling filter and the pixel format.
type Family int

const (
	FamilyCPU Family = iota
	FamilyNVENC
	FamilyVAAPI
	FamilyQSV
)

// DetectFamily classifies an encoder name by substring, e.g.
// "h264_nvenc" and "hevc_nvenc" both map to FamilyNVENC.
func DetectFamily(encoder string) Family {
	switch {
	case strings.Contains(encoder, "nvenc"):
		return FamilyNVENC
	case strings.Contains(encoder, "vaapi"):
		return FamilyVAAPI
	case strings.Contains(encoder, "qsv"):
		return FamilyQSV
	}
	return FamilyCPU
}

func (f Family) String() string {
	switch f {
	case FamilyNVENC:
		return "nvenc"
	case FamilyVAAPI:
		return "vaapi"
	case FamilyQSV:
		return "qsv"
	}
	return "cpu"
}

// hwaccelArgs are the input-side decode acceleration flags.
func (f Family) hwaccelArgs() []string {
	switch f {
	case FamilyNVENC:
		return []string{"-hwaccel", "cuda", "-hwaccel_output_format", "cuda"}
	case FamilyVAAPI:
		return []string{"-hwaccel", "vaapi", "-hwaccel_output_format", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}
	case FamilyQSV:
		return []string{"-hwaccel", "qsv", "-hwaccel_output_format", "qsv"}
	}
	return nil
}

// scaleFilter keeps frames on the hardware device where possible.
// Width -2 preserves aspect ratio at even alignment.
func (f Family) scaleFilter(height int) string {
	h := strconv.Itoa(height)
	switch f {
	case FamilyNVENC:
		return "scale_cuda=-2:" + h
	case FamilyVAAPI:
		return "scale_vaapi=-2:" + h
	case FamilyQSV:
		return "vpp_qsv=w=-2:h=" + h
	}
	return "scale=-2:" + h
}

func (f Family) pixFmt() string {
	switch f {
	case FamilyNVENC:
		return "cuda"
	case FamilyVAAPI:
		return "vaapi"
	case FamilyQSV:
		return "qsv"
	}
	return "yuv420p"
}

// codecArgs are the encoder-specific quality/rate-control flags.
func (f Family) codecArgs() []string {
	switch f {
	case FamilyNVENC:
		return []string{
			"-preset", "p3",
			"-profile:v", "main",
			"-level:v", "4.1",
			"-rc:v", "vbr",
			"-rc-lookahead", "20",
			"-bf", "3",
			"-spatial-aq", "1",
			"-temporal-aq", "1",
			"-aq-strength", "8",
			"-surfaces", "8",
			"-weighted_pred", "1",
		}
	case FamilyVAAPI:
		return []string{
			"-compression_level", "20",
			"-rc_mode", "VBR",
			"-profile:v", "main",
		}
	case FamilyQSV:
		return []string{
			"-preset", "faster",
			"-profile:v", "main",
			"-look_ahead", "1",
			"-look_ahead_depth", "40",
		}
	}
	return []string{
		"-preset", "veryfast",
		"-profile:v", "main",
		"-level:v", "4.0",
	}
}

// hardware reports whether frames live on a device and need
// hwdownload before software-only sinks like the JPEG encoder.
func (f Family) hardware() bool {
	return f != FamilyCPU
}
