// Package ffmpeg wraps the ffmpeg and ffprobe command line tools:
// binary discovery, media probing and supervised transcode commands
// that stream their output to an io.Writer.
package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Environment variables that override binary auto-detection.
const (
	envFFmpegBinary  = "SCENEVAULT_FFMPEG_BINARY"
	envFFprobeBinary = "SCENEVAULT_FFPROBE_BINARY"
)

// binaryCacheTTL controls how long a resolved binary path is trusted
// before PATH is consulted again.
const binaryCacheTTL = 5 * time.Minute

// BinaryInfo describes a resolved ffmpeg or ffprobe binary.
type BinaryInfo struct {
	Path    string
	Version string
}

// BinaryDetector resolves the ffmpeg and ffprobe binaries, preferring an
// explicitly configured path, then an environment override, then PATH.
// Lookups are cached because handlers resolve per request.
type BinaryDetector struct {
	ffmpegPath  string // configured path, may be empty
	ffprobePath string

	mu        sync.Mutex
	ffmpeg    *BinaryInfo
	ffprobe   *BinaryInfo
	checkedAt time.Time
}

// NewBinaryDetector creates a detector. Either configured path may be
// empty, in which case the binary is auto-detected.
func NewBinaryDetector(ffmpegPath, ffprobePath string) *BinaryDetector {
	return &BinaryDetector{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// FFmpeg returns the resolved ffmpeg binary.
func (d *BinaryDetector) FFmpeg() (*BinaryInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refresh(); err != nil {
		return nil, err
	}
	if d.ffmpeg == nil {
		return nil, fmt.Errorf("ffmpeg binary not found")
	}
	return d.ffmpeg, nil
}

// FFprobe returns the resolved ffprobe binary.
func (d *BinaryDetector) FFprobe() (*BinaryInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refresh(); err != nil {
		return nil, err
	}
	if d.ffprobe == nil {
		return nil, fmt.Errorf("ffprobe binary not found")
	}
	return d.ffprobe, nil
}

// refresh re-resolves both binaries when the cache has expired.
// Caller must hold d.mu.
func (d *BinaryDetector) refresh() error {
	if d.ffmpeg != nil && d.ffprobe != nil && time.Since(d.checkedAt) < binaryCacheTTL {
		return nil
	}

	ffmpegPath, err := findBinary("ffmpeg", d.ffmpegPath, envFFmpegBinary)
	if err != nil {
		return err
	}
	ffprobePath, err := findBinary("ffprobe", d.ffprobePath, envFFprobeBinary)
	if err != nil {
		return err
	}

	d.ffmpeg = &BinaryInfo{Path: ffmpegPath, Version: detectVersion(ffmpegPath)}
	d.ffprobe = &BinaryInfo{Path: ffprobePath, Version: detectVersion(ffprobePath)}
	d.checkedAt = time.Now()
	return nil
}

// findBinary resolves a binary path: configured path first, then the
// environment override, then PATH lookup.
func findBinary(name, configured, envVar string) (string, error) {
	for _, candidate := range []string{configured, os.Getenv(envVar)} {
		if candidate == "" {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil {
			return "", fmt.Errorf("%s binary %s: %w", name, candidate, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s binary %s is a directory", name, candidate)
		}
		return candidate, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// detectVersion extracts the version string from "<binary> -version".
// Returns "unknown" when the output cannot be parsed; a missing version
// never blocks streaming.
func detectVersion(path string) string {
	out, err := exec.Command(path, "-version").Output()
	if err != nil {
		return "unknown"
	}
	return parseVersionOutput(string(out))
}

// parseVersionOutput parses the first line of ffmpeg/ffprobe -version
// output, e.g. "ffmpeg version 6.1.1-3ubuntu5 Copyright ...".
func parseVersionOutput(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}
