package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scenevault/scenevault/internal/codec"
)

// ProbeResult contains the raw output of an ffprobe invocation.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container-level metadata.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream contains per-stream metadata.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // video, audio, subtitle, data
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Channels  int    `json:"channels,omitempty"`
}

// MediaInfo is the probe result mapped into the compatibility domain.
// Container, Video and Audio are empty when ffprobe reported a value
// the compatibility matrix does not know about.
type MediaInfo struct {
	Container codec.Container
	Video     codec.Video
	Audio     codec.Audio
	Duration  float64
}

// Complete reports whether every field needed for stream negotiation
// was recognized.
func (m *MediaInfo) Complete() bool {
	return m.Container != "" && m.Video != "" && m.Audio != "" && m.Duration > 0
}

// Prober inspects media files using ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new prober using the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets a custom timeout for ffprobe invocations.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe runs ffprobe against the given file and returns the raw result.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running ffprobe on %s: %w", path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	return &result, nil
}

// ProbeMedia probes a file and maps the result into MediaInfo. An
// unrecognized container or codec leaves the corresponding field empty
// rather than failing, so callers can store a partial result decision.
func (p *Prober) ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return mapProbeResult(result, path), nil
}

// mapProbeResult translates raw ffprobe metadata into the codec domain.
// The first video and first audio stream win; additional streams are
// ignored for negotiation purposes.
func mapProbeResult(result *ProbeResult, path string) *MediaInfo {
	info := &MediaInfo{}
	if c, ok := codec.ParseContainer(result.Format.FormatName, path); ok {
		info.Container = c
	}

	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if info.Video == "" {
				if v, ok := codec.ParseVideo(stream.CodecName); ok {
					info.Video = v
				}
			}
		case "audio":
			if info.Audio == "" {
				if a, ok := codec.ParseAudio(stream.CodecName); ok {
					info.Audio = a
				}
			}
		}
	}

	return info
}

// ProbeKeyframes returns the presentation timestamps of all keyframes
// in the first video stream, sorted ascending. Files with sparse
// keyframes produce short lists; that is fine, the segment planner
// handles any distribution.
func (p *Prober) ProbeKeyframes(ctx context.Context, path string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts_time,flags",
		"-of", "csv=p=0",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probing keyframes of %s: %w", path, err)
	}

	return parseKeyframeOutput(string(out)), nil
}

// parseKeyframeOutput extracts keyframe timestamps from ffprobe CSV
// output. Each line looks like "1.234000,K__" where a K flag marks a
// keyframe packet. Lines without a parseable timestamp are skipped.
func parseKeyframeOutput(out string) []float64 {
	var keyframes []float64
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pts, flags, ok := strings.Cut(line, ",")
		if !ok || !strings.Contains(flags, "K") {
			continue
		}

		t, err := strconv.ParseFloat(pts, 64)
		if err != nil {
			continue
		}
		keyframes = append(keyframes, t)
	}

	// ffprobe emits packets in decode order which can differ from
	// presentation order for streams with B-frames.
	sort.Float64s(keyframes)
	return keyframes
}
