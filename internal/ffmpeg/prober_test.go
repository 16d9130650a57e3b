package ffmpeg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenevault/scenevault/internal/codec"
)

func TestMapProbeResult(t *testing.T) {
	t.Run("mp4 with recognized codecs", func(t *testing.T) {
		raw := `{
			"format": {"filename": "/media/movie.mp4", "format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "31.000000"},
			"streams": [
				{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
				{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
			]
		}`
		var result ProbeResult
		require.NoError(t, json.Unmarshal([]byte(raw), &result))

		info := mapProbeResult(&result, "/media/movie.mp4")
		assert.Equal(t, codec.ContainerMP4, info.Container)
		assert.Equal(t, codec.VideoH264, info.Video)
		assert.Equal(t, codec.AudioAAC, info.Audio)
		assert.InDelta(t, 31.0, info.Duration, 0.001)
		assert.True(t, info.Complete())
	})

	t.Run("matroska disambiguated by extension", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{FormatName: "matroska,webm", Duration: "10.5"},
			Streams: []ProbeStream{
				{CodecName: "vp9", CodecType: "video"},
				{CodecName: "opus", CodecType: "audio"},
			},
		}

		info := mapProbeResult(result, "/media/clip.webm")
		assert.Equal(t, codec.ContainerWEBM, info.Container)

		info = mapProbeResult(result, "/media/clip.mkv")
		assert.Equal(t, codec.ContainerMKV, info.Container)
	})

	t.Run("unknown codec leaves field empty", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2", Duration: "5"},
			Streams: []ProbeStream{
				{CodecName: "prores", CodecType: "video"},
				{CodecName: "aac", CodecType: "audio"},
			},
		}

		info := mapProbeResult(result, "/media/raw.mp4")
		assert.Empty(t, info.Video)
		assert.Equal(t, codec.AudioAAC, info.Audio)
		assert.False(t, info.Complete())
	})

	t.Run("first stream of each type wins", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{FormatName: "matroska,webm", Duration: "5"},
			Streams: []ProbeStream{
				{CodecName: "h264", CodecType: "video"},
				{CodecName: "vp9", CodecType: "video"},
				{CodecName: "opus", CodecType: "audio"},
				{CodecName: "vorbis", CodecType: "audio"},
			},
		}

		info := mapProbeResult(result, "/media/multi.mkv")
		assert.Equal(t, codec.VideoH264, info.Video)
		assert.Equal(t, codec.AudioOpus, info.Audio)
	})

	t.Run("unknown container leaves field empty", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{FormatName: "avi", Duration: "12"},
			Streams: []ProbeStream{
				{CodecName: "h264", CodecType: "video"},
				{CodecName: "pcm_s16le", CodecType: "audio"},
			},
		}

		info := mapProbeResult(result, "/media/old.avi")
		assert.Empty(t, info.Container)
		assert.Equal(t, codec.VideoH264, info.Video)
		assert.Empty(t, info.Audio)
		assert.False(t, info.Complete())
	})

	t.Run("missing duration", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2", Duration: "N/A"},
		}

		info := mapProbeResult(result, "/media/live.mp4")
		assert.Zero(t, info.Duration)
		assert.False(t, info.Complete())
	})
}

func TestParseKeyframeOutput(t *testing.T) {
	t.Run("filters non keyframes", func(t *testing.T) {
		out := "0.000000,K__\n" +
			"0.040000,___\n" +
			"5.000000,K__\n" +
			"5.040000,___\n" +
			"20.000000,K__\n"

		keyframes := parseKeyframeOutput(out)
		assert.Equal(t, []float64{0, 5, 20}, keyframes)
	})

	t.Run("sorts decode order output", func(t *testing.T) {
		out := "5.000000,K__\n0.000000,K__\n2.500000,K__\n"
		assert.Equal(t, []float64{0, 2.5, 5}, parseKeyframeOutput(out))
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		out := "garbage\nN/A,K__\n1.000000,K__\n\n"
		assert.Equal(t, []float64{1}, parseKeyframeOutput(out))
	})

	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, parseKeyframeOutput(""))
	})
}
