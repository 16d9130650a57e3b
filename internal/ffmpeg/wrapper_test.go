package ffmpeg

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder_Build(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		Stats().
		Seek(22.75).
		Input("/media/movie.mkv").
		Duration(2.75).
		VideoCodec("libx264").
		AudioCodec("aac").
		Format("mpegts").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Equal(t, []string{
		"-loglevel", "error",
		"-hide_banner",
		"-stats",
		"-ss", "22.75",
		"-i", "/media/movie.mkv",
		"-t", "2.75",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-f", "mpegts",
		"pipe:1",
	}, cmd.Args)
}

func TestCommandBuilder_DefaultsToStdout(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in.mp4").Build()
	assert.Equal(t, "pipe:1", cmd.Args[len(cmd.Args)-1])
}

func TestCommandBuilder_ExplicitOutput(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in.mp4").Output("/tmp/out.mp4").Build()
	assert.Equal(t, "/tmp/out.mp4", cmd.Args[len(cmd.Args)-1])
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0", formatSeconds(0))
	assert.Equal(t, "5", formatSeconds(5.0))
	assert.Equal(t, "22.75", formatSeconds(22.75))
	assert.Equal(t, "3.5", formatSeconds(3.5))
}

func TestParseProgressLine(t *testing.T) {
	t.Run("stats line", func(t *testing.T) {
		line := "frame=  250 fps= 25 q=28.0 size=    1024KiB time=00:00:10.04 bitrate= 835.1kbits/s speed=1.01x"

		progress, ok := parseProgressLine(line)
		require.True(t, ok)
		assert.Equal(t, int64(250), progress.Frame)
		assert.InDelta(t, 25.0, progress.FPS, 0.001)
		assert.Equal(t, 10*time.Second+40*time.Millisecond, progress.Time)
		assert.InDelta(t, 1.01, progress.Speed, 0.001)
	})

	t.Run("time only", func(t *testing.T) {
		progress, ok := parseProgressLine("size=N/A time=01:02:03.50 bitrate=N/A")
		require.True(t, ok)
		assert.Equal(t, time.Hour+2*time.Minute+3*time.Second+500*time.Millisecond, progress.Time)
	})

	t.Run("not a progress line", func(t *testing.T) {
		_, ok := parseProgressLine("[matroska @ 0x5555] Starting new cluster")
		assert.False(t, ok)
	})
}

func TestCaptureStderr_CRDelimited(t *testing.T) {
	var cmd Command
	done := make(chan struct{})

	var progressCount atomic.Int64
	r := readCloser{bytes.NewReader([]byte(
		"frame=  1 time=00:00:00.50 speed=1x\r" +
			"frame=  2 time=00:00:01.00 speed=1x\r" +
			"warning: something\n",
	))}
	cmd.captureStderr(r, func(Progress) { progressCount.Add(1) }, done)

	<-done
	assert.Equal(t, int64(2), progressCount.Load())
	assert.Len(t, cmd.GetStderrLines(), 3)
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }

func TestCommand_StreamToWriter(t *testing.T) {
	cmd := &Command{
		Binary: "sh",
		Args:   []string{"-c", `printf data; printf 'frame=  10 time=00:00:01.00 speed=1x\r' 1>&2`},
	}

	var progressed atomic.Bool
	cmd.OnProgress(func(Progress) { progressed.Store(true) })

	var buf bytes.Buffer
	require.NoError(t, cmd.StreamToWriter(context.Background(), &buf))
	assert.Equal(t, "data", buf.String())
	assert.True(t, progressed.Load())
	assert.False(t, cmd.IsRunning())
}

func TestCommand_Kill(t *testing.T) {
	cmd := &Command{Binary: "sleep", Args: []string{"30"}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- cmd.StreamToWriter(context.Background(), &bytes.Buffer{})
	}()

	// Wait for the process to actually start before killing it.
	require.Eventually(t, cmd.IsRunning, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, cmd.Kill())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}
}

func TestCommand_KillBeforeStart(t *testing.T) {
	cmd := &Command{Binary: "sleep", Args: []string{"30"}}
	require.NoError(t, cmd.Kill())

	// The kill latches: a later StreamToWriter must refuse to spawn
	// instead of leaving an orphaned process nobody can kill again.
	err := cmd.StreamToWriter(context.Background(), &bytes.Buffer{})
	require.ErrorIs(t, err, ErrKilledBeforeStart)
	assert.False(t, cmd.IsRunning())
}

func TestCommand_KillRacesStart(t *testing.T) {
	// Kill and StreamToWriter issued concurrently: whichever order the
	// scheduler picks, the process must not outlive the call.
	for i := 0; i < 20; i++ {
		cmd := &Command{Binary: "sleep", Args: []string{"30"}}

		errCh := make(chan error, 1)
		go func() {
			errCh <- cmd.StreamToWriter(context.Background(), &bytes.Buffer{})
		}()
		go func() { _ = cmd.Kill() }()

		select {
		case err := <-errCh:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("process survived a concurrent Kill")
		}
		assert.False(t, cmd.IsRunning())
	}
}

func TestCountingWriter(t *testing.T) {
	monitor := NewProcessMonitor(1)
	var buf bytes.Buffer
	cw := NewCountingWriter(&buf, monitor)

	n, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(5), monitor.Stats().BytesWritten)
}
