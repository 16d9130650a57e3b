// Package handlers provides HTTP API handlers for scenevault.
package handlers

import (
	"time"

	"github.com/scenevault/scenevault/internal/codec"
	"github.com/scenevault/scenevault/internal/models"
	"github.com/scenevault/scenevault/internal/stream"
)

// Media types

// MediaItemResponse represents a media item in API responses.
type MediaItemResponse struct {
	ID         models.ULID      `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Path       string           `json:"path"`
	Title      string           `json:"title"`
	Size       int64            `json:"size"`
	Probed     bool             `json:"probed"`
	Container  *codec.Container `json:"container,omitempty"`
	VideoCodec *codec.Video     `json:"video_codec,omitempty"`
	AudioCodec *codec.Audio     `json:"audio_codec,omitempty"`
	Duration   *float64         `json:"duration,omitempty"`
}

// MediaItemFromModel converts a model to a response.
func MediaItemFromModel(m *models.MediaItem) MediaItemResponse {
	return MediaItemResponse{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Path:       m.Path,
		Title:      m.Title,
		Size:       m.Size,
		Probed:     m.Probed(),
		Container:  m.Container,
		VideoCodec: m.VideoCodec,
		AudioCodec: m.AudioCodec,
		Duration:   m.Duration,
	}
}

// MediaListResponse is the response for media item listings.
type MediaListResponse struct {
	Total int                 `json:"total"`
	Items []MediaItemResponse `json:"items"`
}

// AddMediaRequest is the request body for registering a media file.
type AddMediaRequest struct {
	Path  string `json:"path" doc:"Absolute path of the media file to register"`
	Title string `json:"title,omitempty" doc:"Display title (defaults to the file name)"`
}

// Stream types

// StreamOption is one playable delivery option with its playback URL.
type StreamOption struct {
	stream.Descriptor
	URL string `json:"url"`
}

// StreamListResponse is the ordered delivery option list for an item,
// most preferred first.
type StreamListResponse struct {
	MediaID     models.ULID    `json:"media_id"`
	Streams     []StreamOption `json:"streams"`
	HLSPlaylist string         `json:"hls_playlist"`
}

// Health types

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUInfo       CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Database      DatabaseHealth    `json:"database"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// CPUInfo holds CPU core count and load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory usage.
type MemoryInfo struct {
	TotalMemoryMB     float64           `json:"total_mb"`
	UsedMemoryMB      float64           `json:"used_mb"`
	AvailableMemoryMB float64           `json:"available_mb"`
	ProcessMemory     ProcessMemoryInfo `json:"process"`
}

// ProcessMemoryInfo holds memory usage of this process and its children.
// Child processes are the running ffmpeg transcodes.
type ProcessMemoryInfo struct {
	MainProcessMB      float64 `json:"main_mb"`
	ChildProcessCount  int     `json:"child_process_count"`
	ChildProcessesMB   float64 `json:"children_mb"`
	TotalProcessTreeMB float64 `json:"total_tree_mb"`
}

// DatabaseHealth holds database connectivity and pool information.
type DatabaseHealth struct {
	Status             string  `json:"status"`
	ConnectionPoolSize int     `json:"connection_pool_size"`
	ActiveConnections  int     `json:"active_connections"`
	IdleConnections    int     `json:"idle_connections"`
	ResponseTimeMS     float64 `json:"response_time_ms"`
}
