package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scenevault/scenevault/internal/ffmpeg"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/repository"
)

// Sentinel errors shared by the service layer. Handlers map these to
// HTTP status codes.
var (
	ErrMediaNotFound  = errors.New("media item not found")
	ErrPathRegistered = errors.New("path already registered")
	ErrPathOutsideDir = errors.New("path outside the configured media directory")
)

// Prober probes media files. *ffmpeg.Prober implements it.
type Prober interface {
	ProbeMedia(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	ProbeKeyframes(ctx context.Context, path string) ([]float64, error)
}

// MediaService manages the media item library: registration, probe
// metadata and removal.
type MediaService struct {
	repo     repository.MediaItemRepository
	prober   Prober
	mediaDir string
	logger   *slog.Logger
}

// NewMediaService creates a new MediaService. mediaDir may be empty to
// accept any absolute path.
func NewMediaService(repo repository.MediaItemRepository, prober Prober, mediaDir string) *MediaService {
	return &MediaService{
		repo:     repo,
		prober:   prober,
		mediaDir: mediaDir,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *MediaService) WithLogger(logger *slog.Logger) *MediaService {
	s.logger = logger
	return s
}

// Add registers a media file and probes its container, codecs and
// duration. Probe metadata is stored all-or-nothing: if any field is
// unrecognized the item is persisted unprobed and can be refreshed
// later, it just will not direct-play.
func (s *MediaService) Add(ctx context.Context, path, title string) (*models.MediaItem, error) {
	path, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMediaNotFound, path)
	}

	existing, err := s.repo.GetByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathRegistered, path)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	item := &models.MediaItem{
		Path:  path,
		Title: title,
		Size:  info.Size(),
	}
	s.probeInto(ctx, item)

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("media item registered",
		slog.String("id", item.ID.String()),
		slog.String("path", path),
		slog.Bool("probed", item.Probed()),
	)
	return item, nil
}

// Refresh re-probes an existing item, replacing its cached metadata.
func (s *MediaService) Refresh(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(item.Path); err == nil {
		item.Size = info.Size()
	}

	s.probeInto(ctx, item)
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get retrieves a media item by ID.
func (s *MediaService) Get(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrMediaNotFound
	}
	return item, nil
}

// List retrieves all media items.
func (s *MediaService) List(ctx context.Context) ([]*models.MediaItem, error) {
	return s.repo.GetAll(ctx)
}

// Delete removes a media item from the library. The file itself is
// left untouched.
func (s *MediaService) Delete(ctx context.Context, id models.ULID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// probeInto probes the item's file and stores the result on the item.
// An incomplete or failed probe clears the metadata instead of storing
// a partial row.
func (s *MediaService) probeInto(ctx context.Context, item *models.MediaItem) {
	info, err := s.prober.ProbeMedia(ctx, item.Path)
	if err != nil {
		s.logger.Warn("probing media file failed",
			slog.String("path", item.Path),
			slog.String("error", err.Error()),
		)
		item.ClearProbe()
		return
	}
	if !info.Complete() {
		s.logger.Warn("probe returned unrecognized metadata",
			slog.String("path", item.Path),
			slog.String("format", string(info.Container)),
		)
		item.ClearProbe()
		return
	}
	item.SetProbe(info.Container, info.Video, info.Audio, info.Duration)
}

// resolvePath normalizes the path and enforces the media directory
// restriction when one is configured.
func (s *MediaService) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrMediaNotFound)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if s.mediaDir != "" {
		rel, err := filepath.Rel(s.mediaDir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrPathOutsideDir, path)
		}
	}
	return path, nil
}
