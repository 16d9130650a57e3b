package stream

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the encoder selection and tuning flags for one target
// format.
type Profile struct {
	VideoCodec string   `yaml:"video_codec"`
	AudioCodec string   `yaml:"audio_codec"`
	ExtraArgs  []string `yaml:"extra_args"`
}

// Profiles bundles the encode profiles for every transcode strategy.
type Profiles struct {
	WEBM    Profile `yaml:"webm"`
	MP4     Profile `yaml:"mp4"`
	Segment Profile `yaml:"segment"`
}

// DefaultProfiles returns the built-in encode profiles. The WEBM flags
// favor encode speed over quality since the fallback transcode runs in
// real time against a waiting player.
func DefaultProfiles() Profiles {
	return Profiles{
		WEBM: Profile{
			VideoCodec: "libvpx-vp9",
			AudioCodec: "libopus",
			ExtraArgs: []string{
				"-deadline", "realtime",
				"-cpu-used", "5",
				"-row-mt", "1",
				"-crf", "30",
				"-b:v", "0",
			},
		},
		MP4: Profile{
			VideoCodec: "libx264",
			AudioCodec: "aac",
			// Fragmented output so playback starts before the moov
			// atom could be finalized.
			ExtraArgs: []string{"-movflags", "frag_keyframe+empty_moov"},
		},
		Segment: Profile{
			VideoCodec: "libx264",
			AudioCodec: "aac",
			ExtraArgs:  []string{"-preset", "veryfast", "-muxdelay", "0"},
		},
	}
}

// LoadProfiles returns the default profiles overlaid with the YAML
// file at path. An empty path returns the defaults unchanged. Fields
// present in the file replace the corresponding defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profiles, fmt.Errorf("reading profiles file: %w", err)
	}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return profiles, fmt.Errorf("parsing profiles file %s: %w", path, err)
	}
	return profiles, nil
}
