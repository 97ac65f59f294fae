// Package analyze implements the analyze command, a one-shot track
// analysis that prints the result as JSON.
package analyze

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/automixer/automix-go/internal/analysis"
	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/conf"
)

// Command creates the analyze command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [input.mp3|input.wav]",
		Short: "Analyze a single audio file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, args[0])
		},
	}
}

func run(cmd *cobra.Command, settings *conf.Settings, path string) error {
	audio.SetBinaryPaths(settings.Analysis.FfmpegPath, settings.Analysis.FfprobePath)
	audio.SetSampleRate(settings.Analysis.SampleRate)
	audio.SetDecodeTimeout(time.Duration(settings.Analysis.DecodeTimeout) * time.Second)
	if err := audio.ValidateFfmpegPath(); err != nil {
		return fmt.Errorf("ffmpeg is required: %w", err)
	}

	mime, err := mimeForPath(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	analyzer := analysis.New(settings.Analysis.Version,
		analysis.WithMaxTrackLength(settings.Analysis.MaxTrackLength))
	result, err := analyzer.Analyze(cmd.Context(), data, mime, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("analysis of %s failed: %w", path, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func mimeForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return audio.MimeMPEG, nil
	case ".wav":
		return audio.MimeWAV, nil
	default:
		return "", fmt.Errorf("unsupported file type %q, expected .mp3 or .wav", filepath.Ext(path))
	}
}
