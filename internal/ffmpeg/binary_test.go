package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBinary(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755))

	t.Run("configured path wins", func(t *testing.T) {
		path, err := findBinary("ffmpeg", fake, "SCENEVAULT_TEST_UNSET")
		require.NoError(t, err)
		assert.Equal(t, fake, path)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("SCENEVAULT_TEST_FFMPEG", fake)
		path, err := findBinary("ffmpeg", "", "SCENEVAULT_TEST_FFMPEG")
		require.NoError(t, err)
		assert.Equal(t, fake, path)
	})

	t.Run("configured path missing", func(t *testing.T) {
		_, err := findBinary("ffmpeg", filepath.Join(dir, "missing"), "SCENEVAULT_TEST_UNSET")
		assert.Error(t, err)
	})

	t.Run("configured path is a directory", func(t *testing.T) {
		_, err := findBinary("ffmpeg", dir, "SCENEVAULT_TEST_UNSET")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "directory")
	})

	t.Run("falls back to PATH", func(t *testing.T) {
		path, err := findBinary("sh", "", "SCENEVAULT_TEST_UNSET")
		require.NoError(t, err)
		assert.NotEmpty(t, path)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		_, err := findBinary("scenevault-no-such-binary", "", "SCENEVAULT_TEST_UNSET")
		assert.Error(t, err)
	})
}

func TestParseVersionOutput(t *testing.T) {
	out := "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc 13\n"
	assert.Equal(t, "6.1.1-3ubuntu5", parseVersionOutput(out))

	assert.Equal(t, "unknown", parseVersionOutput(""))
	assert.Equal(t, "unknown", parseVersionOutput("something unexpected"))
}
