package models

import (
	"github.com/scenevault/scenevault/internal/codec"
)

// MediaItem represents a media file registered with the vault.
//
// The probe columns (Container, VideoCodec, AudioCodec, Duration) are
// populated together from a single ffprobe pass and are all-or-nothing:
// either every field is set or none is. Negotiation treats a partially
// probed item the same as an unprobed one.
type MediaItem struct {
	BaseModel
	Path  string `gorm:"uniqueIndex;not null" json:"path"`
	Title string `gorm:"index" json:"title"`
	Size  int64  `json:"size"`

	Container  *codec.Container `gorm:"type:varchar(16)" json:"container,omitempty"`
	VideoCodec *codec.Video     `gorm:"type:varchar(16)" json:"video_codec,omitempty"`
	AudioCodec *codec.Audio     `gorm:"type:varchar(16)" json:"audio_codec,omitempty"`
	Duration   *float64         `json:"duration,omitempty"`
}

// TableName returns the database table name.
func (MediaItem) TableName() string {
	return "media_items"
}

// Probed returns true when all probe-derived fields are present.
func (m *MediaItem) Probed() bool {
	return m.Container != nil && m.VideoCodec != nil && m.AudioCodec != nil && m.Duration != nil
}

// SetProbe populates all probe-derived fields at once.
func (m *MediaItem) SetProbe(c codec.Container, v codec.Video, a codec.Audio, duration float64) {
	m.Container = &c
	m.VideoCodec = &v
	m.AudioCodec = &a
	m.Duration = &duration
}

// ClearProbe resets the item to the unprobed state.
func (m *MediaItem) ClearProbe() {
	m.Container = nil
	m.VideoCodec = nil
	m.AudioCodec = nil
	m.Duration = nil
}
