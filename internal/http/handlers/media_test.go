package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/service"
	"github.com/scenevault/scenevault/internal/stream"
)

// mockMediaService is an in-memory implementation of MediaServiceInterface.
type mockMediaService struct {
	items map[models.ULID]*models.MediaItem
}

func newMockMediaService() *mockMediaService {
	return &mockMediaService{items: make(map[models.ULID]*models.MediaItem)}
}

func (s *mockMediaService) Add(ctx context.Context, path, title string) (*models.MediaItem, error) {
	for _, item := range s.items {
		if item.Path == path {
			return nil, fmt.Errorf("%w: %s", service.ErrPathRegistered, path)
		}
	}

	item := &models.MediaItem{Path: path, Title: title}
	item.ID = models.NewULID()
	item.SetProbe(codec.ContainerMP4, codec.VideoH264, codec.AudioAAC, 31.0)
	s.items[item.ID] = item
	return item, nil
}

func (s *mockMediaService) Refresh(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	return s.Get(ctx, id)
}

func (s *mockMediaService) Get(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, service.ErrMediaNotFound
	}
	return item, nil
}

func (s *mockMediaService) List(ctx context.Context) ([]*models.MediaItem, error) {
	items := make([]*models.MediaItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items, nil
}

func (s *mockMediaService) Delete(ctx context.Context, id models.ULID) error {
	if _, ok := s.items[id]; !ok {
		return service.ErrMediaNotFound
	}
	delete(s.items, id)
	return nil
}

// mockStreamNegotiator returns canned descriptors and records plan
// invalidations.
type mockStreamNegotiator struct {
	media       *mockMediaService
	invalidated []models.ULID
}

func (s *mockStreamNegotiator) Streams(ctx context.Context, id models.ULID) ([]stream.Descriptor, error) {
	item, err := s.media.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return stream.Negotiate(item), nil
}

func (s *mockStreamNegotiator) InvalidatePlan(id models.ULID) {
	s.invalidated = append(s.invalidated, id)
}

func newMediaFixture() (*MediaHandler, *mockMediaService, *mockStreamNegotiator) {
	media := newMockMediaService()
	streams := &mockStreamNegotiator{media: media}
	return NewMediaHandler(media, streams), media, streams
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestMediaHandler_AddAndGet(t *testing.T) {
	ctx := context.Background()
	handler, _, _ := newMediaFixture()

	added, err := handler.AddMedia(ctx, &AddMediaInput{
		Body: AddMediaRequest{Path: "/media/movie.mp4", Title: "Movie"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Movie", added.Body.Title)
	assert.True(t, added.Body.Probed)

	got, err := handler.GetMedia(ctx, &GetMediaInput{ID: added.Body.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, added.Body.ID, got.Body.ID)
}

func TestMediaHandler_AddMedia_Validation(t *testing.T) {
	ctx := context.Background()
	handler, _, _ := newMediaFixture()

	_, err := handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{}})
	assert.Equal(t, 400, statusOf(t, err))

	_, err = handler.AddMedia(ctx, &AddMediaInput{
		Body: AddMediaRequest{Path: "/media/dup.mp4"},
	})
	require.NoError(t, err)
	_, err = handler.AddMedia(ctx, &AddMediaInput{
		Body: AddMediaRequest{Path: "/media/dup.mp4"},
	})
	assert.Equal(t, 409, statusOf(t, err))
}

func TestMediaHandler_GetMedia_Errors(t *testing.T) {
	ctx := context.Background()
	handler, _, _ := newMediaFixture()

	_, err := handler.GetMedia(ctx, &GetMediaInput{ID: "not-a-ulid"})
	assert.Equal(t, 400, statusOf(t, err))

	_, err = handler.GetMedia(ctx, &GetMediaInput{ID: models.NewULID().String()})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestMediaHandler_ListMedia(t *testing.T) {
	ctx := context.Background()
	handler, _, _ := newMediaFixture()

	empty, err := handler.ListMedia(ctx, &ListMediaInput{})
	require.NoError(t, err)
	assert.Zero(t, empty.Body.Total)

	_, err = handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{Path: "/media/a.mp4"}})
	require.NoError(t, err)
	_, err = handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{Path: "/media/b.mp4"}})
	require.NoError(t, err)

	listed, err := handler.ListMedia(ctx, &ListMediaInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, listed.Body.Total)
	assert.Len(t, listed.Body.Items, 2)
}

func TestMediaHandler_DeleteMedia_InvalidatesPlan(t *testing.T) {
	ctx := context.Background()
	handler, _, streams := newMediaFixture()

	added, err := handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{Path: "/media/gone.mp4"}})
	require.NoError(t, err)

	_, err = handler.DeleteMedia(ctx, &DeleteMediaInput{ID: added.Body.ID.String()})
	require.NoError(t, err)
	assert.Contains(t, streams.invalidated, added.Body.ID)

	_, err = handler.DeleteMedia(ctx, &DeleteMediaInput{ID: added.Body.ID.String()})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestMediaHandler_RefreshMedia_InvalidatesPlan(t *testing.T) {
	ctx := context.Background()
	handler, _, streams := newMediaFixture()

	added, err := handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{Path: "/media/stale.mp4"}})
	require.NoError(t, err)

	refreshed, err := handler.RefreshMedia(ctx, &RefreshMediaInput{ID: added.Body.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, added.Body.ID, refreshed.Body.ID)
	assert.Contains(t, streams.invalidated, added.Body.ID)
}

func TestMediaHandler_GetStreams(t *testing.T) {
	ctx := context.Background()
	handler, _, _ := newMediaFixture()

	added, err := handler.AddMedia(ctx, &AddMediaInput{Body: AddMediaRequest{Path: "/media/nego.mp4"}})
	require.NoError(t, err)
	id := added.Body.ID

	output, err := handler.GetStreams(ctx, &GetStreamsInput{ID: id.String()})
	require.NoError(t, err)

	require.NotEmpty(t, output.Body.Streams)
	assert.Equal(t, stream.StrategyDirect, output.Body.Streams[0].Strategy)
	assert.Equal(t, fmt.Sprintf("/media/%s/stream/direct", id), output.Body.Streams[0].URL)

	last := output.Body.Streams[len(output.Body.Streams)-1]
	assert.Equal(t, stream.StrategyWEBM, last.Strategy)
	assert.Equal(t, fmt.Sprintf("/media/%s/stream/webm", id), last.URL)

	assert.Equal(t, fmt.Sprintf("/media/%s/hls/index.m3u8", id), output.Body.HLSPlaylist)
}

func TestPlaybackURL(t *testing.T) {
	id := models.NewULID()

	assert.Equal(t, fmt.Sprintf("/media/%s/stream/direct", id), PlaybackURL(id, stream.StrategyDirect))
	assert.Equal(t, fmt.Sprintf("/media/%s/stream/mkv", id), PlaybackURL(id, stream.StrategyMKV))
	assert.Equal(t, fmt.Sprintf("/media/%s/stream/webm", id), PlaybackURL(id, stream.StrategyWEBM))
	assert.Equal(t, fmt.Sprintf("/media/%s/hls/index.m3u8", id), PlaybackURL(id, stream.StrategyHLS))
}
