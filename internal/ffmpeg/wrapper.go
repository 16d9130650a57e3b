package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrKilledBeforeStart is returned by StreamToWriter when Kill ran
// before the process could be spawned.
var ErrKilledBeforeStart = errors.New("killed before start")

// Command represents a single ffmpeg invocation that streams its output
// to a writer. A Command can be started at most once.
type Command struct {
	Binary string
	Args   []string
	Input  string

	cmd     *exec.Cmd
	started time.Time
	killed  bool
	mu      sync.RWMutex

	monitor *ProcessMonitor

	// onProgress is invoked for every progress line ffmpeg writes to
	// stderr. Set before calling StreamToWriter.
	onProgress func(Progress)

	stderrLines []string
	stderrMu    sync.RWMutex
}

// Progress represents a parsed ffmpeg progress line.
type Progress struct {
	Frame   int64         `json:"frame"`
	FPS     float64       `json:"fps"`
	Bitrate string        `json:"bitrate"`
	Time    time.Duration `json:"time"`
	Speed   float64       `json:"speed"`
}

// CommandBuilder builds ffmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	outputArgs []string
	output     string
	logLevel   string
}

// NewCommandBuilder creates a new ffmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the ffmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Stats enables progress stats output. Without this flag ffmpeg stays
// silent at loglevel error and the idle watchdog would never see
// progress.
func (b *CommandBuilder) Stats() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-stats")
	return b
}

// Seek seeks the input to the given position in seconds. Placed before
// -i so ffmpeg uses fast keyframe seeking.
func (b *CommandBuilder) Seek(seconds float64) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, "-ss", formatSeconds(seconds))
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// InputArgs adds arbitrary input arguments.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// Duration limits the output to the given length in seconds.
func (b *CommandBuilder) Duration(seconds float64) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-t", formatSeconds(seconds))
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// Format sets the output container format.
func (b *CommandBuilder) Format(format string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", format)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination. Defaults to stdout when unset.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)

	output := b.output
	if output == "" {
		output = "pipe:1"
	}
	args = append(args, output)

	return &Command{
		Binary:      b.binary,
		Args:        args,
		Input:       b.input,
		stderrLines: make([]string, 0, maxStderrLines),
	}
}

// formatSeconds formats a seconds value for ffmpeg arguments without
// trailing zeros.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// OnProgress registers a callback invoked for every parsed progress
// line. Must be called before StreamToWriter.
func (c *Command) OnProgress(fn func(Progress)) {
	c.mu.Lock()
	c.onProgress = fn
	c.mu.Unlock()
}

// Kill terminates the ffmpeg process. Safe to call before start or
// after exit: a kill that lands before the process exists is latched,
// and StreamToWriter refuses to spawn afterwards. The mutex is held
// across Start, so the process handle is never read mid-spawn.
func (c *Command) Kill() error {
	c.mu.Lock()
	c.killed = true
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// IsRunning returns true if the command is running.
func (c *Command) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cmd == nil || c.cmd.Process == nil {
		return false
	}
	return c.cmd.ProcessState == nil
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// StreamToWriter runs ffmpeg and copies its stdout to w until the
// process exits. Stderr is captured for diagnostics and scanned for
// progress lines. Resource usage of the child process is sampled while
// it runs.
func (c *Command) StreamToWriter(ctx context.Context, w io.Writer) error {
	c.mu.Lock()
	if c.killed {
		c.mu.Unlock()
		return ErrKilledBeforeStart
	}

	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("getting stdout pipe: %w", err)
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	// Start happens under the mutex so a concurrent Kill either latches
	// before the spawn or observes a live process handle, never half of
	// one.
	if err := c.cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	c.monitor = NewProcessMonitor(int32(c.cmd.Process.Pid))
	c.monitor.Start()
	onProgress := c.onProgress
	c.mu.Unlock()

	stderrDone := make(chan struct{})
	go c.captureStderr(stderr, onProgress, stderrDone)

	counting := NewCountingWriter(w, c.monitor)
	copyDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(counting, stdout)
		copyDone <- err
	}()

	waitErr := c.cmd.Wait()
	<-stderrDone
	c.stopMonitor()

	select {
	case copyErr := <-copyDone:
		if copyErr != nil && waitErr == nil {
			return fmt.Errorf("copying output: %w", copyErr)
		}
	default:
	}

	return waitErr
}

// maxStderrLines bounds the in-memory stderr ring buffer.
const maxStderrLines = 100

// captureStderr reads ffmpeg stderr, keeps the most recent lines for
// diagnostics and reports parsed progress lines.
func (c *Command) captureStderr(stderr io.ReadCloser, onProgress func(Progress), done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	// ffmpeg writes progress updates with \r, not \n.
	scanner.Split(scanLinesCR)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		c.stderrMu.Lock()
		if len(c.stderrLines) >= maxStderrLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, line)
		c.stderrMu.Unlock()

		if onProgress != nil {
			if progress, ok := parseProgressLine(line); ok {
				onProgress(progress)
			}
		}
	}
}

// scanLinesCR is a bufio.SplitFunc that treats both \n and \r as line
// terminators.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Regex patterns for parsing ffmpeg stats lines.
var (
	frameRe   = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+\s*\w+/s)`)
	timeRe    = regexp.MustCompile(`time=(\d+):(\d+):(\d+).(\d+)`)
	speedRe   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// parseProgressLine parses a single ffmpeg stats line. The second
// return value is false when the line carries no progress information,
// for example warnings or codec banners.
func parseProgressLine(line string) (Progress, bool) {
	var progress Progress
	matched := false

	if m := frameRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Frame, _ = strconv.ParseInt(m[1], 10, 64)
		matched = true
	}
	if m := fpsRe.FindStringSubmatch(line); len(m) > 1 {
		progress.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := bitrateRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Bitrate = m[1]
	}
	if m := timeRe.FindStringSubmatch(line); len(m) > 4 {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		secs, _ := strconv.Atoi(m[3])
		centis, _ := strconv.Atoi(m[4])
		progress.Time = time.Duration(hours)*time.Hour +
			time.Duration(mins)*time.Minute +
			time.Duration(secs)*time.Second +
			time.Duration(centis)*10*time.Millisecond
		matched = true
	}
	if m := speedRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Speed, _ = strconv.ParseFloat(m[1], 64)
	}

	return progress, matched
}

// GetStderrLines returns the recent stderr lines captured from ffmpeg.
func (c *Command) GetStderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// stopMonitor stops the process monitor if running.
func (c *Command) stopMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.Stop()
	}
}

// Stats returns resource usage statistics for the ffmpeg process.
// Returns nil before the process has started.
func (c *Command) Stats() *ProcessStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.monitor == nil {
		return nil
	}
	stats := c.monitor.Stats()
	return &stats
}
