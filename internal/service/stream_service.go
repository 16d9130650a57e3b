package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/ffmpeg"
	"github.com/scenevault/scenevault/internal/hls"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/repository"
	"github.com/scenevault/scenevault/internal/stream"
)

// ErrNoPlan is returned when a segment is requested before the
// playlist produced a cached plan for the item.
var ErrNoPlan = errors.New("no segment plan cached; fetch the playlist first")

// binaryResolver resolves the ffmpeg binary. *ffmpeg.BinaryDetector
// implements it.
type binaryResolver interface {
	FFmpeg() (*ffmpeg.BinaryInfo, error)
}

// Playback is a ready-to-run transcode: the handler writes response
// headers using MimeType, then hands the response writer to Session.
type Playback struct {
	Session  *stream.Session
	MimeType string
}

// StreamService orchestrates delivery: negotiation, direct play
// resolution, supervised transcodes and HLS planning.
type StreamService struct {
	repo        repository.MediaItemRepository
	prober      Prober
	binaries    binaryResolver
	profiles    stream.Profiles
	plans       *hls.PlanCache
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewStreamService creates a new StreamService.
func NewStreamService(
	repo repository.MediaItemRepository,
	prober Prober,
	binaries binaryResolver,
	profiles stream.Profiles,
	idleTimeout time.Duration,
) *StreamService {
	return &StreamService{
		repo:        repo,
		prober:      prober,
		binaries:    binaries,
		profiles:    profiles,
		plans:       hls.NewPlanCache(),
		idleTimeout: idleTimeout,
		logger:      slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *StreamService) WithLogger(logger *slog.Logger) *StreamService {
	s.logger = logger
	return s
}

// PlanCache exposes the segment plan cache for the janitor.
func (s *StreamService) PlanCache() *hls.PlanCache {
	return s.plans
}

// InvalidatePlan drops the cached segment plan for a media item.
func (s *StreamService) InvalidatePlan(id models.ULID) {
	s.plans.Delete(id)
}

// Streams returns the ordered delivery options for a media item.
func (s *StreamService) Streams(ctx context.Context, id models.ULID) ([]stream.Descriptor, error) {
	item, err := s.item(ctx, id)
	if err != nil {
		return nil, err
	}
	return stream.Negotiate(item), nil
}

// Direct resolves a direct-play request: the file path to serve and
// its MIME type. Fails with a NegotiationError when the item has no
// direct descriptor.
func (s *StreamService) Direct(ctx context.Context, id models.ULID) (path, mimeType string, err error) {
	item, err := s.item(ctx, id)
	if err != nil {
		return "", "", err
	}

	descriptors := stream.Negotiate(item)
	if len(descriptors) == 0 || descriptors[0].Strategy != stream.StrategyDirect {
		return "", "", &stream.NegotiationError{
			Reason: "media item is not direct-playable",
		}
	}
	return item.Path, descriptors[0].MimeType, nil
}

// NewTranscode prepares a supervised whole-file transcode session for
// the mkv or webm strategy, seeking to start seconds.
func (s *StreamService) NewTranscode(ctx context.Context, id models.ULID, strategy stream.Strategy, start float64) (*Playback, error) {
	item, err := s.item(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		args     []string
		mimeType string
	)
	switch strategy {
	case stream.StrategyWEBM:
		args = s.profiles.WebmArgs(item)
		mimeType = codec.MimeType(codec.ContainerWEBM)
	case stream.StrategyMKV:
		args, err = s.profiles.MKVArgs(item)
		if err != nil {
			return nil, err
		}
		mimeType = codec.MimeType(codec.ContainerMP4)
	default:
		return nil, &stream.NegotiationError{
			Reason: fmt.Sprintf("unsupported transcode strategy %q", strategy),
		}
	}

	cmd, err := s.buildCommand(item.Path, start, 0, args)
	if err != nil {
		return nil, err
	}

	return &Playback{
		Session:  stream.NewSession(cmd, s.idleTimeout, s.logger),
		MimeType: mimeType,
	}, nil
}

// Playlist returns the segment plan for an item, computing and caching
// it on first request. Probe failure is a hard error: without keyframes
// there is nothing safe to segment.
func (s *StreamService) Playlist(ctx context.Context, id models.ULID) (hls.Plan, error) {
	item, err := s.item(ctx, id)
	if err != nil {
		return nil, err
	}

	if plan := s.plans.Get(id); plan != nil {
		return plan, nil
	}

	duration, err := s.duration(ctx, item)
	if err != nil {
		return nil, err
	}
	keyframes, err := s.prober.ProbeKeyframes(ctx, item.Path)
	if err != nil {
		return nil, fmt.Errorf("probing keyframes: %w", err)
	}

	plan := hls.PlanSegments(keyframes, duration)
	s.plans.Put(id, plan)

	s.logger.Debug("segment plan computed",
		slog.String("id", id.String()),
		slog.Int("segments", plan.SegmentCount()),
	)
	return plan, nil
}

// NewSegment prepares a bounded transcode session for one HLS segment.
// The plan must already be cached; segment requests never trigger
// planning themselves.
func (s *StreamService) NewSegment(ctx context.Context, id models.ULID, index int) (*Playback, error) {
	item, err := s.item(ctx, id)
	if err != nil {
		return nil, err
	}

	plan := s.plans.Get(id)
	if plan == nil {
		return nil, ErrNoPlan
	}

	start, duration, err := plan.Segment(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}

	// Bounded encode: no idle watchdog, the window ends the process.
	cmd, err := s.buildCommand(item.Path, start, duration, s.profiles.SegmentArgs(start))
	if err != nil {
		return nil, err
	}

	return &Playback{
		Session:  stream.NewSession(cmd, 0, s.logger),
		MimeType: hls.SegmentContentType,
	}, nil
}

// buildCommand assembles the ffmpeg invocation for a transcode. A zero
// duration means "until the end of the input".
func (s *StreamService) buildCommand(path string, start, duration float64, outputArgs []string) (*ffmpeg.Command, error) {
	bin, err := s.binaries.FFmpeg()
	if err != nil {
		return nil, err
	}

	builder := ffmpeg.NewCommandBuilder(bin.Path).
		HideBanner().
		Stats()
	if start > 0 {
		builder.Seek(start)
	}
	builder.Input(path)
	if duration > 0 {
		builder.Duration(duration)
	}
	builder.OutputArgs(outputArgs...)

	return builder.Build(), nil
}

// item loads a media item and verifies its file still exists.
func (s *StreamService) item(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Path == "" {
		return nil, ErrMediaNotFound
	}
	if _, err := os.Stat(item.Path); err != nil {
		return nil, fmt.Errorf("%w: file missing at %s", ErrMediaNotFound, item.Path)
	}
	return item, nil
}

// duration returns the item's probed duration, falling back to a live
// probe for unprobed items.
func (s *StreamService) duration(ctx context.Context, item *models.MediaItem) (float64, error) {
	if item.Duration != nil && *item.Duration > 0 {
		return *item.Duration, nil
	}

	info, err := s.prober.ProbeMedia(ctx, item.Path)
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w", err)
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("probe reported no duration for %s", item.Path)
	}
	return info.Duration, nil
}
