// Package stream selects delivery strategies for media items and
// supervises the ffmpeg processes that serve transcoded streams.
package stream

import (
	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/models"
)

// Strategy identifies a delivery strategy. The value doubles as the
// path element of the stream endpoint.
type Strategy string

const (
	// StrategyDirect serves the file bytes unmodified.
	StrategyDirect Strategy = "direct"
	// StrategyMKV repackages an MKV file into MP4, copying the video
	// stream and re-encoding audio only when needed.
	StrategyMKV Strategy = "mkv"
	// StrategyWEBM re-encodes into WEBM. Works for any input, so it is
	// the guaranteed-playable fallback.
	StrategyWEBM Strategy = "webm"
	// StrategyHLS serves the file as segmented HLS with a VOD playlist.
	StrategyHLS Strategy = "hls"
)

// Descriptor describes one playable delivery option for a media item.
type Descriptor struct {
	Label     string   `json:"label"`
	MimeType  string   `json:"mime_type"`
	Strategy  Strategy `json:"strategy"`
	Transcode bool     `json:"transcode"`
}

// Negotiate produces the ordered list of delivery options for an item,
// most preferred first. Direct play leads when the probed container
// and codecs are browser-compatible as-is; the WEBM fallback always
// closes the list. Infeasible strategies are simply omitted, never
// errors.
func Negotiate(item *models.MediaItem) []Descriptor {
	if item == nil || item.Path == "" {
		return nil
	}

	var descriptors []Descriptor

	if item.Probed() &&
		codec.IsVideoCompatible(*item.Container, *item.VideoCodec) &&
		codec.IsAudioCompatible(*item.Container, *item.AudioCodec) {
		descriptors = append(descriptors, Descriptor{
			Label:    "Direct play",
			MimeType: codec.MimeType(*item.Container),
			Strategy: StrategyDirect,
		})
	}

	if item.Container != nil && *item.Container == codec.ContainerMKV {
		descriptors = append(descriptors, Descriptor{
			Label:     "MKV remux",
			MimeType:  codec.MimeType(codec.ContainerMP4),
			Strategy:  StrategyMKV,
			Transcode: true,
		})
	}

	descriptors = append(descriptors, Descriptor{
		Label:     "WEBM transcode",
		MimeType:  codec.MimeType(codec.ContainerWEBM),
		Strategy:  StrategyWEBM,
		Transcode: true,
	})

	return descriptors
}
