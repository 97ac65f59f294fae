package audio

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/automixer/automix-go/internal/errors"
)

// Transcoder binary paths are resolved once at process init and reused by
// every decode, render, and stem job. Concurrent invocations each spawn
// their own child process.
var (
	ffmpegPath  = "ffmpeg"
	ffprobePath = "ffprobe"
	pathMu      sync.RWMutex
)

// SetBinaryPaths configures the ffmpeg and ffprobe binary locations.
// Called once from service startup before any jobs run.
func SetBinaryPaths(ffmpeg, ffprobe string) {
	pathMu.Lock()
	defer pathMu.Unlock()
	if ffmpeg != "" {
		ffmpegPath = ffmpeg
	}
	if ffprobe != "" {
		ffprobePath = ffprobe
	}
}

// FfmpegPath returns the configured ffmpeg binary path.
func FfmpegPath() string {
	pathMu.RLock()
	defer pathMu.RUnlock()
	return ffmpegPath
}

// FfprobePath returns the configured ffprobe binary path.
func FfprobePath() string {
	pathMu.RLock()
	defer pathMu.RUnlock()
	return ffprobePath
}

// ValidateFfmpegPath checks that the configured ffmpeg binary can be found.
func ValidateFfmpegPath() error {
	if _, err := exec.LookPath(FfmpegPath()); err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDecode).
			Context("binary", FfmpegPath()).
			Build()
	}
	return nil
}

// RunFFmpeg executes ffmpeg with the given arguments, optionally piping
// stdin, and returns stdout. On failure the tail of stderr is attached to
// the returned error for diagnosis.
func RunFFmpeg(ctx context.Context, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, FfmpegPath(), args...)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			category := errors.CategoryCancellation
			if ctx.Err() == context.DeadlineExceeded {
				category = errors.CategoryTimeout
			}
			return nil, errors.New(ctx.Err()).
				Component("audio").
				Category(category).
				Context("stderr_tail", stderrTail(&stderr)).
				Build()
		}
		return nil, errors.Newf("ffmpeg failed: %s", stderrTail(&stderr)).
			Component("audio").
			Category(errors.CategoryCommandExecution).
			Build()
	}
	return out.Bytes(), nil
}

// RunFFmpegToFile executes ffmpeg writing its output to a file path
// already present in args. Used by the renderer and stem fallback where
// output is a container file rather than a raw stream.
func RunFFmpegToFile(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, FfmpegPath(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			category := errors.CategoryCancellation
			if ctx.Err() == context.DeadlineExceeded {
				category = errors.CategoryTimeout
			}
			return errors.New(ctx.Err()).
				Component("audio").
				Category(category).
				Context("stderr_tail", stderrTail(&stderr)).
				Build()
		}
		return errors.Newf("ffmpeg failed: %s", stderrTail(&stderr)).
			Component("audio").
			Category(errors.CategoryCommandExecution).
			Build()
	}
	return nil
}

// stderrTail returns the last few lines of ffmpeg's stderr, which carry
// the actual failure reason under the banner noise.
func stderrTail(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	const keep = 4
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, " | ")
}

