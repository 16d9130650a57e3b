// Package codec provides the closed codec and container vocabulary for
// scenevault along with the container compatibility matrix that drives
// stream negotiation and transcode decisions.
package codec

import (
	"path/filepath"
	"strings"
)

// Video represents a video codec.
type Video string

// Video codec constants.
const (
	VideoH264 Video = "h264" // H.264/AVC
	VideoH265 Video = "h265" // H.265/HEVC
	VideoVP8  Video = "vp8"  // VP8
	VideoVP9  Video = "vp9"  // VP9
)

// Audio represents an audio codec.
type Audio string

// Audio codec constants.
const (
	AudioAAC    Audio = "aac"    // AAC
	AudioMP3    Audio = "mp3"    // MP3
	AudioMP2    Audio = "mp2"    // MPEG-1 Layer II (detection only, not an encoding target)
	AudioVorbis Audio = "vorbis" // Vorbis
	AudioOpus   Audio = "opus"   // Opus
)

// Container represents a media container format.
type Container string

// Container format constants.
const (
	ContainerMP4  Container = "mp4"
	ContainerWEBM Container = "webm"
	ContainerMKV  Container = "mkv"
)

// String returns the string representation of the video codec.
func (v Video) String() string {
	return string(v)
}

// String returns the string representation of the audio codec.
func (a Audio) String() string {
	return string(a)
}

// String returns the string representation of the container.
func (c Container) String() string {
	return string(c)
}

// compat describes the codecs a container can hold without re-encoding.
type compat struct {
	Video map[Video]bool
	Audio map[Audio]bool
	MIME  string
}

// compatibility is the container compatibility matrix. MKV video is the
// union of the MP4 and WEBM video sets; MKV audio is restricted to the
// WEBM audio set because MKV output here always pairs with Opus/Vorbis
// re-encoding rather than passthrough of MP4-family audio.
var compatibility = map[Container]compat{
	ContainerMP4: {
		Video: map[Video]bool{VideoH264: true, VideoH265: true},
		Audio: map[Audio]bool{AudioAAC: true, AudioMP3: true, AudioMP2: true},
		MIME:  "video/mp4",
	},
	ContainerWEBM: {
		Video: map[Video]bool{VideoVP8: true, VideoVP9: true},
		Audio: map[Audio]bool{AudioVorbis: true, AudioOpus: true},
		MIME:  "video/webm",
	},
	ContainerMKV: {
		Video: map[Video]bool{VideoH264: true, VideoH265: true, VideoVP8: true, VideoVP9: true},
		Audio: map[Audio]bool{AudioVorbis: true, AudioOpus: true},
		MIME:  "video/x-matroska",
	},
}

// IsVideoCompatible reports whether the container can carry the video codec
// without re-encoding. Unknown containers or codecs are never compatible.
func IsVideoCompatible(c Container, v Video) bool {
	entry, ok := compatibility[c]
	if !ok {
		return false
	}
	return entry.Video[v]
}

// IsAudioCompatible reports whether the container can carry the audio codec
// without re-encoding. Unknown containers or codecs are never compatible.
func IsAudioCompatible(c Container, a Audio) bool {
	entry, ok := compatibility[c]
	if !ok {
		return false
	}
	return entry.Audio[a]
}

// MimeType returns the MIME type for a container, or empty for unknown.
func MimeType(c Container) string {
	entry, ok := compatibility[c]
	if !ok {
		return ""
	}
	return entry.MIME
}

// videoAliases maps ffprobe codec names and common aliases to canonical codecs.
var videoAliases = map[string]Video{
	"h264": VideoH264,
	"avc":  VideoH264,
	"avc1": VideoH264,
	"h265": VideoH265,
	"hevc": VideoH265,
	"hev1": VideoH265,
	"hvc1": VideoH265,
	"vp8":  VideoVP8,
	"vp9":  VideoVP9,
	"vp09": VideoVP9,
}

// audioAliases maps ffprobe codec names and common aliases to canonical codecs.
var audioAliases = map[string]Audio{
	"aac":      AudioAAC,
	"mp4a":     AudioAAC,
	"mp3":      AudioMP3,
	"mp3float": AudioMP3,
	"mp2":      AudioMP2,
	"vorbis":   AudioVorbis,
	"opus":     AudioOpus,
}

// ParseVideo parses an ffprobe codec name (or alias) to a Video codec.
// Returns the canonical codec and whether the parse was successful.
func ParseVideo(s string) (Video, bool) {
	if s == "" {
		return "", false
	}
	v, ok := videoAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// ParseAudio parses an ffprobe codec name (or alias) to an Audio codec.
// Returns the canonical codec and whether the parse was successful.
func ParseAudio(s string) (Audio, bool) {
	if s == "" {
		return "", false
	}
	a, ok := audioAliases[strings.ToLower(strings.TrimSpace(s))]
	return a, ok
}

// ParseContainer maps an ffprobe format_name to a Container. ffprobe reports
// muxer families, not single formats: the MP4 family is the comma list
// "mov,mp4,m4a,3gp,3g2,mj2" and Matroska/WebM share "matroska,webm", which
// only the file extension can disambiguate.
func ParseContainer(formatName, path string) (Container, bool) {
	switch strings.ToLower(strings.TrimSpace(formatName)) {
	case "mov,mp4,m4a,3gp,3g2,mj2", "mp4":
		return ContainerMP4, true
	case "matroska,webm":
		if strings.EqualFold(filepath.Ext(path), ".webm") {
			return ContainerWEBM, true
		}
		return ContainerMKV, true
	case "webm":
		return ContainerWEBM, true
	case "matroska", "mkv":
		return ContainerMKV, true
	default:
		return "", false
	}
}
