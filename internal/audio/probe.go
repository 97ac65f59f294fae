package audio

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/automixer/automix-go/internal/errors"
)

// ProbeDuration reads the container-declared duration of in-memory audio
// by spooling it to a temp file for ffprobe. Callers fall back to sample
// counting when the probe fails.
func ProbeDuration(ctx context.Context, data []byte, mime string) (float64, error) {
	tmp, err := os.CreateTemp("", "automix-probe-*"+extForMime(mime))
	if err != nil {
		return 0, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}
	return GetAudioDuration(ctx, tmp.Name())
}

// GetAudioDuration uses ffprobe to read a file's duration in seconds.
// Container metadata is preferred over sample counting because it is
// available without decoding the stream.
func GetAudioDuration(ctx context.Context, audioPath string) (float64, error) {
	if audioPath == "" {
		return 0, errors.ValidationError("audio path cannot be empty")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, FfprobePath(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			category := errors.CategoryCancellation
			if ctx.Err() == context.DeadlineExceeded {
				category = errors.CategoryTimeout
			}
			return 0, errors.New(ctx.Err()).
				Component("audio").
				Category(category).
				Context("file", audioPath).
				Build()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return 0, errors.Newf("ffprobe failed: %s", msg).
			Component("audio").
			Category(errors.CategoryCommandExecution).
			Build()
	}

	durationStr := strings.TrimSpace(out.String())
	if durationStr == "" || durationStr == "N/A" {
		return 0, errors.Newf("ffprobe could not determine duration for %s", audioPath).
			Component("audio").
			Category(errors.CategoryDecode).
			Build()
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, errors.Newf("failed to parse duration %q: %v", durationStr, err).
			Component("audio").
			Category(errors.CategoryDecode).
			Build()
	}
	if duration <= 0 {
		return 0, errors.Newf("non-positive duration %g for %s", duration, audioPath).
			Component("audio").
			Category(errors.CategoryDecode).
			Build()
	}
	return duration, nil
}
