package stems

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/automixer/automix-go/internal/audio"
	"github.com/automixer/automix-go/internal/errors"
)

// bandFilters approximates each stem by frequency banding alone. The
// vocal band keeps everything above the low mids, drums keep the
// transient band with a limiter taming the cut, bass is the low band,
// and other passes the full signal through.
var bandFilters = map[Kind]string{
	KindVocals: "highpass=f=1200",
	KindDrums:  "highpass=f=150,alimiter=limit=0.9",
	KindBass:   "lowpass=f=150",
	KindOther:  "anull",
}

// BandsplitEngine is the deterministic last-resort separator. It needs
// only ffmpeg, so it is always available, and it produces every stem
// it can rather than failing the whole set.
type BandsplitEngine struct{}

func NewBandsplitEngine() *BandsplitEngine { return &BandsplitEngine{} }

func (b *BandsplitEngine) Name() string { return "bandsplit" }

// IsAvailable requires only a usable ffmpeg binary.
func (b *BandsplitEngine) IsAvailable(_ context.Context) bool {
	return audio.ValidateFfmpegPath() == nil
}

// Separate renders one filtered WAV per stem kind.
func (b *BandsplitEngine) Separate(ctx context.Context, data []byte, name string) (map[Kind]Stem, error) {
	workDir, err := os.MkdirTemp("", "automix-bandsplit-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input")
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, err
	}

	out := make(map[Kind]Stem, len(AllKinds))
	var lastErr error
	for _, kind := range AllKinds {
		stem, err := b.renderBand(ctx, inputPath, workDir, kind)
		if err != nil {
			lastErr = err
			continue
		}
		out[kind] = stem
	}

	if len(out) == 0 {
		return nil, errors.New(lastErr).
			Component("stems").
			Category(errors.CategoryStemEngine).
			Context("engine", "bandsplit").
			Context("track", name).
			Build()
	}
	return out, nil
}

func (b *BandsplitEngine) renderBand(ctx context.Context, inputPath, workDir string, kind Kind) (Stem, error) {
	outputPath := filepath.Join(workDir, fmt.Sprintf("%s.wav", kind))
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", inputPath,
		"-af", bandFilters[kind],
		"-ac", "2",
		"-ar", "44100",
		"-f", "wav",
		outputPath,
	}
	if err := audio.RunFFmpegToFile(ctx, args); err != nil {
		return Stem{}, err
	}
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return Stem{}, err
	}
	return Stem{Data: data, Ext: "wav"}, nil
}
