package stream

import (
	"fmt"
	"strconv"

	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/models"
)

// NegotiationError reports that a requested strategy cannot serve the
// item's actual container or codecs. It is raised before any process
// is spawned and maps to a client error.
type NegotiationError struct {
	Reason string
}

func (e *NegotiationError) Error() string {
	return e.Reason
}

// WebmArgs returns ffmpeg output arguments for the WEBM fallback
// strategy. Streams already WEBM-valid are copied; everything else is
// re-encoded. Never fails: WEBM is the guaranteed-playable option.
func (p Profiles) WebmArgs(item *models.MediaItem) []string {
	args := []string{"-f", "webm"}
	args = append(args, p.WEBM.ExtraArgs...)

	if item.VideoCodec != nil && codec.IsVideoCompatible(codec.ContainerWEBM, *item.VideoCodec) {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-c:v", p.WEBM.VideoCodec)
	}
	if item.AudioCodec != nil && codec.IsAudioCompatible(codec.ContainerWEBM, *item.AudioCodec) {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", p.WEBM.AudioCodec)
	}
	return args
}

// MKVArgs returns ffmpeg output arguments for the MKV-to-MP4 strategy.
// The video stream must already be MP4-valid and is always copied;
// audio is copied when MP4-valid and re-encoded otherwise.
func (p Profiles) MKVArgs(item *models.MediaItem) ([]string, error) {
	if item.Container == nil || *item.Container != codec.ContainerMKV {
		return nil, &NegotiationError{Reason: "media item is not an mkv file"}
	}
	if item.VideoCodec == nil || !codec.IsVideoCompatible(codec.ContainerMP4, *item.VideoCodec) {
		name := "unknown"
		if item.VideoCodec != nil {
			name = string(*item.VideoCodec)
		}
		return nil, &NegotiationError{
			Reason: fmt.Sprintf("video codec %q is not valid for mp4", name),
		}
	}

	args := []string{"-f", "mp4", "-c:v", "copy"}
	args = append(args, p.MP4.ExtraArgs...)

	if item.AudioCodec != nil && codec.IsAudioCompatible(codec.ContainerMP4, *item.AudioCodec) {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", p.MP4.AudioCodec)
	}
	return args, nil
}

// SegmentArgs returns ffmpeg output arguments for one HLS segment
// starting at the given source time. The output timestamp offset makes
// segment timestamps line up with the playlist's cumulative position,
// and the forced keyframe guarantees the segment opens decodable.
func (p Profiles) SegmentArgs(start float64) []string {
	args := []string{
		"-c:v", p.Segment.VideoCodec,
		"-c:a", p.Segment.AudioCodec,
	}
	args = append(args, p.Segment.ExtraArgs...)
	args = append(args,
		"-force_key_frames", "expr:gte(t,0)",
		"-output_ts_offset", strconv.FormatFloat(start, 'f', -1, 64),
		"-f", "mpegts",
	)
	return args
}
