package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenevault/scenevault/internal/ffmpeg"
)

// State is the lifecycle state of a transcode session.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateEnded
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// process is the handle a session supervises. *ffmpeg.Command
// implements it; tests substitute a stub.
type process interface {
	StreamToWriter(ctx context.Context, w io.Writer) error
	Kill() error
	OnProgress(fn func(ffmpeg.Progress))
}

// Session supervises one transcode process for one in-flight response.
// It enforces the idle watchdog, propagates client disconnects and
// guarantees the process is killed at most once no matter how many
// triggers race. Sessions are single-use.
type Session struct {
	cmd         process
	idleTimeout time.Duration
	logger      *slog.Logger

	state  atomic.Int32
	killed atomic.Bool
	reason atomic.Value // string

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewSession creates a session for the given process. An idleTimeout
// of zero disables the watchdog; bounded encodes such as HLS segments
// terminate on their own and must not carry one.
func NewSession(cmd process, idleTimeout time.Duration, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cmd:         cmd,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// KillReason returns why the session was killed, or an empty string.
func (s *Session) KillReason() string {
	reason, _ := s.reason.Load().(string)
	return reason
}

// Run spawns the process and copies its output to w until the process
// exits or the session is killed. Cancellation of ctx (the client
// going away) kills the process rather than relying on the exec layer,
// so every termination path goes through the same at-most-once guard.
func (s *Session) Run(ctx context.Context, w io.Writer) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("session already started")
	}

	if s.idleTimeout > 0 {
		s.timerMu.Lock()
		s.timer = time.AfterFunc(s.idleTimeout, func() {
			s.Kill("idle timeout")
		})
		s.timerMu.Unlock()

		s.cmd.OnProgress(func(ffmpeg.Progress) {
			s.touch()
		})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Kill("client disconnected")
		case <-done:
		}
	}()

	err := s.cmd.StreamToWriter(context.WithoutCancel(ctx), w)
	s.stopTimer()

	switch {
	case s.killed.Load():
		s.state.Store(int32(StateKilled))
		if s.KillReason() == "idle timeout" {
			s.logger.Warn("transcode killed by idle watchdog")
		} else {
			s.logger.Debug("transcode killed", slog.String("reason", s.KillReason()))
		}
		return nil
	case err != nil:
		s.state.Store(int32(StateKilled))
		s.reason.Store("process error")
		s.logger.Error("transcode process failed", slog.String("error", err.Error()))
		return err
	default:
		s.state.Store(int32(StateEnded))
		return nil
	}
}

// Kill terminates the process. Idempotent: the first caller wins and
// later triggers are ignored, so a timeout, a process error and a
// client disconnect can race safely.
func (s *Session) Kill(reason string) {
	if !s.killed.CompareAndSwap(false, true) {
		return
	}
	s.reason.Store(reason)
	s.stopTimer()

	if err := s.cmd.Kill(); err != nil {
		s.logger.Warn("killing transcode process",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

// touch resets the idle watchdog. Called on every progress line so a
// slow but live encode is never falsely killed.
func (s *Session) touch() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil && !s.killed.Load() {
		s.timer.Reset(s.idleTimeout)
	}
}

func (s *Session) stopTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
}
