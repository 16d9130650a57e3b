package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scenevault/scenevault/internal/hls"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/service"
	"github.com/scenevault/scenevault/internal/stream"
)

// DeliveryServiceInterface defines the stream service methods the
// delivery handlers use.
type DeliveryServiceInterface interface {
	Direct(ctx context.Context, id models.ULID) (path, mimeType string, err error)
	NewTranscode(ctx context.Context, id models.ULID, strategy stream.Strategy, start float64) (*service.Playback, error)
	Playlist(ctx context.Context, id models.ULID) (hls.Plan, error)
	NewSegment(ctx context.Context, id models.ULID, index int) (*service.Playback, error)
}

// StreamHandler serves the byte-streaming delivery endpoints.
//
// These are raw chi handlers rather than huma operations: huma's
// StreamResponse commits HTTP 200 before the body callback runs, which
// makes it impossible to return 400/404 for negotiation failures
// discovered while preparing the transcode.
type StreamHandler struct {
	service DeliveryServiceInterface
	logger  *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(svc DeliveryServiceInterface) *StreamHandler {
	return &StreamHandler{
		service: svc,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (h *StreamHandler) WithLogger(logger *slog.Logger) *StreamHandler {
	h.logger = logger
	return h
}

// RegisterRoutes registers the delivery routes on the chi router.
func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Route("/media/{id}", func(r chi.Router) {
		r.Get("/stream/direct", h.Direct)
		r.Get("/stream/{strategy}", h.Transcode)
		r.Get("/hls/index.m3u8", h.Playlist)
		r.Get("/hls/{segment}", h.Segment)
	})
}

// Direct serves the file bytes unmodified with the negotiated MIME
// type. http.ServeContent handles range requests, so seeking works
// without any transcode.
func (h *StreamHandler) Direct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mediaID(w, r)
	if !ok {
		return
	}

	path, mimeType, err := h.service.Direct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	http.ServeFile(w, r, path)
}

// Transcode serves a whole-file transcode for the mkv or webm strategy.
// The optional start query parameter seeks into the file; the response
// streams chunked until the encode ends or the client goes away.
func (h *StreamHandler) Transcode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mediaID(w, r)
	if !ok {
		return
	}

	var strategy stream.Strategy
	switch chi.URLParam(r, "strategy") {
	case string(stream.StrategyMKV):
		strategy = stream.StrategyMKV
	case string(stream.StrategyWEBM):
		strategy = stream.StrategyWEBM
	default:
		http.NotFound(w, r)
		return
	}

	start := 0.0
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid start parameter", http.StatusBadRequest)
			return
		}
		start = parsed
	}

	playback, err := h.service.NewTranscode(r.Context(), id, strategy, start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", playback.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", "inline")

	// Past this point the status is committed; failures end the stream.
	if err := playback.Session.Run(r.Context(), w); err != nil {
		h.logger.Debug("transcode stream ended with error",
			slog.String("id", id.String()),
			slog.String("strategy", string(strategy)),
			slog.String("error", err.Error()),
		)
	}
}

// Playlist serves the HLS VOD playlist, probing the file and computing
// the segment plan on first request.
func (h *StreamHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mediaID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.Playlist(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", hls.PlaylistContentType)
	if err := hls.WritePlaylist(w, plan); err != nil {
		h.logger.Debug("writing playlist failed",
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Segment serves one HLS segment as MPEG-TS. The segment name is the
// hexadecimal plan index, matching the URIs the playlist hands out.
// Requests for items without a cached plan get 404: the client must
// fetch the playlist first.
func (h *StreamHandler) Segment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mediaID(w, r)
	if !ok {
		return
	}

	index, ok := parseSegmentName(chi.URLParam(r, "segment"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	playback, err := h.service.NewSegment(r.Context(), id, index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", playback.MimeType)

	if err := playback.Session.Run(r.Context(), w); err != nil {
		h.logger.Debug("segment stream ended with error",
			slog.String("id", id.String()),
			slog.Int("segment", index),
			slog.String("error", err.Error()),
		)
	}
}

// mediaID parses the id path parameter, writing a 400 on failure.
func (h *StreamHandler) mediaID(w http.ResponseWriter, r *http.Request) (models.ULID, bool) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid media item ID", http.StatusBadRequest)
		return models.ULID{}, false
	}
	return id, true
}

// parseSegmentName extracts the plan index from a segment file name
// such as "1a.ts".
func parseSegmentName(name string) (int, bool) {
	hex, found := strings.CutSuffix(name, ".ts")
	if !found || hex == "" {
		return 0, false
	}

	index, err := strconv.ParseInt(hex, 16, 32)
	if err != nil || index < 0 {
		return 0, false
	}
	return int(index), true
}

// writeError maps service-layer errors onto the delivery endpoints'
// status codes: negotiation failures are client errors naming the
// offending codec, missing items and missing plans are 404, anything
// else (probe failures included) is a 500.
func (h *StreamHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var negErr *stream.NegotiationError
	switch {
	case errors.As(err, &negErr):
		http.Error(w, negErr.Reason, http.StatusBadRequest)
	case errors.Is(err, service.ErrMediaNotFound), errors.Is(err, service.ErrNoPlan):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("delivery request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
