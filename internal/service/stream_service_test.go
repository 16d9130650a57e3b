package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/ffmpeg"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/repository"
	"github.com/scenevault/scenevault/internal/stream"
)

type stubResolver struct{}

func (stubResolver) FFmpeg() (*ffmpeg.BinaryInfo, error) {
	return &ffmpeg.BinaryInfo{Path: "/usr/bin/ffmpeg", Version: "test"}, nil
}

type streamFixture struct {
	svc    *StreamService
	repo   repository.MediaItemRepository
	prober *stubProber
}

func newStreamFixture(t *testing.T, prober *stubProber) *streamFixture {
	t.Helper()

	repo := newTestRepo(t)
	svc := NewStreamService(repo, prober, stubResolver{}, stream.DefaultProfiles(), 0)
	return &streamFixture{svc: svc, repo: repo, prober: prober}
}

func (f *streamFixture) addItem(t *testing.T, name string, container codec.Container, video codec.Video, audio codec.Audio) *models.MediaItem {
	t.Helper()

	item := &models.MediaItem{Path: tempMediaFile(t, name), Title: name}
	item.SetProbe(container, video, audio, 31.0)
	require.NoError(t, f.repo.Create(context.Background(), item))
	return item
}

func TestStreamService_Streams(t *testing.T) {
	ctx := context.Background()
	f := newStreamFixture(t, &stubProber{})
	item := f.addItem(t, "movie.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

	descriptors, err := f.svc.Streams(ctx, item.ID)
	require.NoError(t, err)
	require.NotEmpty(t, descriptors)
	assert.Equal(t, stream.StrategyDirect, descriptors[0].Strategy)

	_, err = f.svc.Streams(ctx, models.NewULID())
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestStreamService_Direct(t *testing.T) {
	ctx := context.Background()
	f := newStreamFixture(t, &stubProber{})

	t.Run("compatible item", func(t *testing.T) {
		item := f.addItem(t, "direct.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

		path, mimeType, err := f.svc.Direct(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.Path, path)
		assert.Equal(t, "video/mp4", mimeType)
	})

	t.Run("incompatible item", func(t *testing.T) {
		item := f.addItem(t, "nodirect.mkv", codec.ContainerMKV, codec.VideoH264, codec.AudioAAC)

		_, _, err := f.svc.Direct(ctx, item.ID)
		var negErr *stream.NegotiationError
		assert.ErrorAs(t, err, &negErr)
	})
}

func TestStreamService_NewTranscode(t *testing.T) {
	ctx := context.Background()
	f := newStreamFixture(t, &stubProber{})

	t.Run("webm works for anything", func(t *testing.T) {
		item := f.addItem(t, "any.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

		playback, err := f.svc.NewTranscode(ctx, item.ID, stream.StrategyWEBM, 0)
		require.NoError(t, err)
		assert.Equal(t, "video/webm", playback.MimeType)
		assert.NotNil(t, playback.Session)
		assert.Equal(t, stream.StateIdle, playback.Session.State())
	})

	t.Run("mkv strategy validates container", func(t *testing.T) {
		item := f.addItem(t, "notmkv.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

		_, err := f.svc.NewTranscode(ctx, item.ID, stream.StrategyMKV, 0)
		var negErr *stream.NegotiationError
		assert.ErrorAs(t, err, &negErr)
	})

	t.Run("mkv strategy with opus audio is accepted", func(t *testing.T) {
		item := f.addItem(t, "h264opus.mkv", codec.ContainerMKV, codec.VideoH264, codec.AudioOpus)

		playback, err := f.svc.NewTranscode(ctx, item.ID, stream.StrategyMKV, 0)
		require.NoError(t, err)
		assert.Equal(t, "video/mp4", playback.MimeType)
	})

	t.Run("unsupported strategy", func(t *testing.T) {
		item := f.addItem(t, "nostrategy.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

		_, err := f.svc.NewTranscode(ctx, item.ID, stream.StrategyDirect, 0)
		var negErr *stream.NegotiationError
		assert.ErrorAs(t, err, &negErr)
	})
}

func TestStreamService_Playlist(t *testing.T) {
	ctx := context.Background()
	prober := &stubProber{keyframes: []float64{5.0, 20.0}}
	f := newStreamFixture(t, prober)
	item := f.addItem(t, "hls.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

	plan, err := f.svc.Playlist(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan[0])
	assert.Equal(t, 31.0, plan[len(plan)-1])
	assert.Equal(t, int32(1), prober.kfCalls.Load())

	// Second request hits the cache.
	again, err := f.svc.Playlist(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, plan, again)
	assert.Equal(t, int32(1), prober.kfCalls.Load())
}

func TestStreamService_Playlist_ProbeFailure(t *testing.T) {
	ctx := context.Background()
	prober := &stubProber{kfErr: assert.AnError}
	f := newStreamFixture(t, prober)
	item := f.addItem(t, "badprobe.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

	_, err := f.svc.Playlist(ctx, item.ID)
	assert.Error(t, err)
	assert.Nil(t, f.svc.PlanCache().Get(item.ID), "failed probe must not cache a plan")
}

func TestStreamService_NewSegment(t *testing.T) {
	ctx := context.Background()
	prober := &stubProber{keyframes: []float64{3.0, 6.0}}
	f := newStreamFixture(t, prober)
	item := f.addItem(t, "segments.mp4", codec.ContainerMP4, codec.VideoH264, codec.AudioAAC)

	t.Run("before playlist", func(t *testing.T) {
		_, err := f.svc.NewSegment(ctx, item.ID, 0)
		assert.ErrorIs(t, err, ErrNoPlan)
	})

	_, err := f.svc.Playlist(ctx, item.ID)
	require.NoError(t, err)

	t.Run("after playlist", func(t *testing.T) {
		playback, err := f.svc.NewSegment(ctx, item.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "video/mp2t", playback.MimeType)
		assert.NotNil(t, playback.Session)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := f.svc.NewSegment(ctx, item.ID, 9999)
		assert.ErrorIs(t, err, ErrNoPlan)
	})

	t.Run("invalidated plan", func(t *testing.T) {
		f.svc.InvalidatePlan(item.ID)
		_, err := f.svc.NewSegment(ctx, item.ID, 0)
		assert.ErrorIs(t, err, ErrNoPlan)
	})
}
