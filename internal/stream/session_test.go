package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenevault/scenevault/internal/ffmpeg"
)

// stubProcess stands in for an ffmpeg process. Exit is signalled via
// the exit channel; Kill pushes a killed error the way a real process
// surfaces a SIGKILL.
type stubProcess struct {
	mu       sync.Mutex
	progress func(ffmpeg.Progress)

	exit  chan error
	kills atomic.Int32
}

func newStubProcess() *stubProcess {
	return &stubProcess{exit: make(chan error, 1)}
}

func (p *stubProcess) OnProgress(fn func(ffmpeg.Progress)) {
	p.mu.Lock()
	p.progress = fn
	p.mu.Unlock()
}

func (p *stubProcess) StreamToWriter(_ context.Context, _ io.Writer) error {
	return <-p.exit
}

func (p *stubProcess) Kill() error {
	p.kills.Add(1)
	select {
	case p.exit <- errors.New("signal: killed"):
	default:
	}
	return nil
}

func (p *stubProcess) emitProgress() {
	p.mu.Lock()
	fn := p.progress
	p.mu.Unlock()
	if fn != nil {
		fn(ffmpeg.Progress{})
	}
}

func (p *stubProcess) hasProgressHandler() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress != nil
}

func TestSession_NormalCompletion(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 0, nil)

	proc.exit <- nil
	require.NoError(t, session.Run(context.Background(), io.Discard))

	assert.Equal(t, StateEnded, session.State())
	assert.Zero(t, proc.kills.Load())
}

func TestSession_ProcessError(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 0, nil)

	proc.exit <- errors.New("encoder exploded")
	err := session.Run(context.Background(), io.Discard)

	assert.Error(t, err)
	assert.Equal(t, StateKilled, session.State())
	assert.Equal(t, "process error", session.KillReason())
}

func TestSession_IdleTimeout(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 30*time.Millisecond, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(context.Background(), io.Discard)
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err, "a killed session is not a caller error")
	case <-time.After(2 * time.Second):
		t.Fatal("idle watchdog never fired")
	}

	assert.Equal(t, StateKilled, session.State())
	assert.Equal(t, "idle timeout", session.KillReason())
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestSession_ProgressResetsIdleTimer(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 80*time.Millisecond, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(context.Background(), io.Discard)
	}()

	require.Eventually(t, proc.hasProgressHandler, time.Second, 5*time.Millisecond)

	// Keep emitting progress past several timeout windows.
	for i := 0; i < 10; i++ {
		time.Sleep(25 * time.Millisecond)
		proc.emitProgress()
	}
	proc.exit <- nil

	require.NoError(t, <-errCh)
	assert.Equal(t, StateEnded, session.State())
	assert.Zero(t, proc.kills.Load(), "live encode must not be killed")
}

func TestSession_ClientDisconnect(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(ctx, io.Discard)
	}()

	require.Eventually(t, proc.hasProgressHandler, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-errCh)
	assert.Equal(t, StateKilled, session.State())
	assert.Equal(t, "client disconnected", session.KillReason())
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestSession_DisconnectBeforeSpawn(t *testing.T) {
	// A disconnect that lands before the process handle exists must
	// still terminate the transcode: the kill latches in the command
	// and either blocks the spawn or lands right after it.
	cmd := &ffmpeg.Command{Binary: "sleep", Args: []string{"30"}}
	session := NewSession(cmd, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(ctx, io.Discard)
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process survived a pre-spawn disconnect")
	}

	assert.Equal(t, StateKilled, session.State())
	assert.Equal(t, "client disconnected", session.KillReason())
	assert.False(t, cmd.IsRunning())
}

func TestSession_KillIsIdempotent(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 0, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(context.Background(), io.Discard)
	}()

	session.Kill("client disconnected")
	session.Kill("idle timeout")
	session.Kill("late error")

	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), proc.kills.Load(), "process must be killed at most once")
	assert.Equal(t, "client disconnected", session.KillReason(), "first trigger wins")
}

func TestSession_SingleUse(t *testing.T) {
	proc := newStubProcess()
	session := NewSession(proc, 0, nil)

	proc.exit <- nil
	require.NoError(t, session.Run(context.Background(), io.Discard))

	err := session.Run(context.Background(), io.Discard)
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "ended", StateEnded.String())
	assert.Equal(t, "killed", StateKilled.String())
	assert.Equal(t, "unknown", State(99).String())
}
