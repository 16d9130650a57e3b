package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/service"
	"github.com/scenevault/scenevault/internal/stream"
)

// MediaServiceInterface defines the media service methods the handler uses.
type MediaServiceInterface interface {
	Add(ctx context.Context, path, title string) (*models.MediaItem, error)
	Refresh(ctx context.Context, id models.ULID) (*models.MediaItem, error)
	Get(ctx context.Context, id models.ULID) (*models.MediaItem, error)
	List(ctx context.Context) ([]*models.MediaItem, error)
	Delete(ctx context.Context, id models.ULID) error
}

// StreamNegotiatorInterface defines the stream service methods the
// media handler uses for the delivery option listing.
type StreamNegotiatorInterface interface {
	Streams(ctx context.Context, id models.ULID) ([]stream.Descriptor, error)
	InvalidatePlan(id models.ULID)
}

// MediaHandler handles media library endpoints.
type MediaHandler struct {
	service MediaServiceInterface
	streams StreamNegotiatorInterface
	logger  *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(svc MediaServiceInterface, streams StreamNegotiatorInterface) *MediaHandler {
	return &MediaHandler{
		service: svc,
		streams: streams,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (h *MediaHandler) WithLogger(logger *slog.Logger) *MediaHandler {
	h.logger = logger
	return h
}

// ListMediaInput is the input for listing media items.
type ListMediaInput struct{}

// ListMediaOutput is the output for listing media items.
type ListMediaOutput struct {
	Body MediaListResponse
}

// GetMediaInput is the input for fetching a single media item.
type GetMediaInput struct {
	ID string `path:"id" doc:"Media item ID"`
}

// GetMediaOutput is the output for fetching a single media item.
type GetMediaOutput struct {
	Body MediaItemResponse
}

// AddMediaInput is the input for registering a media file.
type AddMediaInput struct {
	Body AddMediaRequest
}

// AddMediaOutput is the output for registering a media file.
type AddMediaOutput struct {
	Body MediaItemResponse
}

// DeleteMediaInput is the input for removing a media item.
type DeleteMediaInput struct {
	ID string `path:"id" doc:"Media item ID"`
}

// DeleteMediaOutput is the output for removing a media item.
type DeleteMediaOutput struct{}

// RefreshMediaInput is the input for re-probing a media item.
type RefreshMediaInput struct {
	ID string `path:"id" doc:"Media item ID"`
}

// RefreshMediaOutput is the output for re-probing a media item.
type RefreshMediaOutput struct {
	Body MediaItemResponse
}

// GetStreamsInput is the input for listing delivery options.
type GetStreamsInput struct {
	ID string `path:"id" doc:"Media item ID"`
}

// GetStreamsOutput is the output for listing delivery options.
type GetStreamsOutput struct {
	Body StreamListResponse
}

// Register registers the media routes with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listMedia",
		Method:      "GET",
		Path:        "/api/v1/media",
		Summary:     "List media items",
		Description: "Returns all registered media items",
		Tags:        []string{"Media"},
	}, h.ListMedia)

	huma.Register(api, huma.Operation{
		OperationID:   "addMedia",
		Method:        "POST",
		Path:          "/api/v1/media",
		Summary:       "Register a media file",
		Description:   "Registers a media file by path and probes its container, codecs and duration",
		Tags:          []string{"Media"},
		DefaultStatus: 201,
	}, h.AddMedia)

	huma.Register(api, huma.Operation{
		OperationID: "getMedia",
		Method:      "GET",
		Path:        "/api/v1/media/{id}",
		Summary:     "Get a media item",
		Tags:        []string{"Media"},
	}, h.GetMedia)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteMedia",
		Method:        "DELETE",
		Path:          "/api/v1/media/{id}",
		Summary:       "Remove a media item",
		Description:   "Removes a media item from the library. The file on disk is left untouched.",
		Tags:          []string{"Media"},
		DefaultStatus: 204,
	}, h.DeleteMedia)

	huma.Register(api, huma.Operation{
		OperationID: "refreshMedia",
		Method:      "POST",
		Path:        "/api/v1/media/{id}/refresh",
		Summary:     "Re-probe a media item",
		Description: "Re-probes the file and replaces the cached metadata",
		Tags:        []string{"Media"},
	}, h.RefreshMedia)

	huma.Register(api, huma.Operation{
		OperationID: "getMediaStreams",
		Method:      "GET",
		Path:        "/api/v1/media/{id}/streams",
		Summary:     "List delivery options",
		Description: "Returns the ordered playable delivery options for a media item, most preferred first",
		Tags:        []string{"Media"},
	}, h.GetStreams)
}

// ListMedia returns all registered media items.
func (h *MediaHandler) ListMedia(ctx context.Context, input *ListMediaInput) (*ListMediaOutput, error) {
	items, err := h.service.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing media items", err)
	}

	responses := make([]MediaItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, MediaItemFromModel(item))
	}

	return &ListMediaOutput{
		Body: MediaListResponse{
			Total: len(responses),
			Items: responses,
		},
	}, nil
}

// GetMedia returns a single media item.
func (h *MediaHandler) GetMedia(ctx context.Context, input *GetMediaInput) (*GetMediaOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid media item ID", err)
	}

	item, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, mediaServiceError(err)
	}

	return &GetMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// AddMedia registers a media file.
func (h *MediaHandler) AddMedia(ctx context.Context, input *AddMediaInput) (*AddMediaOutput, error) {
	if input.Body.Path == "" {
		return nil, huma.Error400BadRequest("path is required")
	}

	item, err := h.service.Add(ctx, input.Body.Path, input.Body.Title)
	if err != nil {
		return nil, mediaServiceError(err)
	}

	return &AddMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// DeleteMedia removes a media item and drops its cached segment plan.
func (h *MediaHandler) DeleteMedia(ctx context.Context, input *DeleteMediaInput) (*DeleteMediaOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid media item ID", err)
	}

	if err := h.service.Delete(ctx, id); err != nil {
		return nil, mediaServiceError(err)
	}
	h.streams.InvalidatePlan(id)

	return &DeleteMediaOutput{}, nil
}

// RefreshMedia re-probes a media item. The cached segment plan is
// dropped because the file may have changed on disk.
func (h *MediaHandler) RefreshMedia(ctx context.Context, input *RefreshMediaInput) (*RefreshMediaOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid media item ID", err)
	}

	item, err := h.service.Refresh(ctx, id)
	if err != nil {
		return nil, mediaServiceError(err)
	}
	h.streams.InvalidatePlan(id)

	return &RefreshMediaOutput{Body: MediaItemFromModel(item)}, nil
}

// GetStreams returns the ordered delivery options for a media item.
func (h *MediaHandler) GetStreams(ctx context.Context, input *GetStreamsInput) (*GetStreamsOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid media item ID", err)
	}

	descriptors, err := h.streams.Streams(ctx, id)
	if err != nil {
		return nil, mediaServiceError(err)
	}

	options := make([]StreamOption, 0, len(descriptors))
	for _, d := range descriptors {
		options = append(options, StreamOption{
			Descriptor: d,
			URL:        PlaybackURL(id, d.Strategy),
		})
	}

	return &GetStreamsOutput{
		Body: StreamListResponse{
			MediaID:     id,
			Streams:     options,
			HLSPlaylist: PlaybackURL(id, stream.StrategyHLS),
		},
	}, nil
}

// PlaybackURL returns the delivery endpoint path for a strategy.
func PlaybackURL(id models.ULID, strategy stream.Strategy) string {
	switch strategy {
	case stream.StrategyDirect:
		return fmt.Sprintf("/media/%s/stream/direct", id)
	case stream.StrategyHLS:
		return fmt.Sprintf("/media/%s/hls/index.m3u8", id)
	default:
		return fmt.Sprintf("/media/%s/stream/%s", id, strategy)
	}
}

// mediaServiceError maps service-layer errors to HTTP errors.
func mediaServiceError(err error) error {
	var negErr *stream.NegotiationError
	switch {
	case errors.Is(err, service.ErrMediaNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrPathRegistered):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrPathOutsideDir):
		return huma.Error400BadRequest(err.Error())
	case errors.As(err, &negErr):
		return huma.Error400BadRequest(negErr.Reason)
	default:
		return huma.Error500InternalServerError("media operation failed", err)
	}
}
