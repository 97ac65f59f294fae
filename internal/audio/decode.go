package audio

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-audio/wav"

	"github.com/automixer/automix-go/internal/errors"
)

// ErrUnsupportedMime is returned for containers outside the accepted set.
var ErrUnsupportedMime = errors.NewStd("unsupported audio container")

// DefaultDecodeTimeout is the per-decode deadline applied when the
// caller's context carries none.
const DefaultDecodeTimeout = 60 * time.Second

var decodeTimeout = DefaultDecodeTimeout

// SetDecodeTimeout overrides the default decode deadline. Non-positive
// values are ignored.
func SetDecodeTimeout(d time.Duration) {
	if d > 0 {
		decodeTimeout = d
	}
}

// Decode converts container bytes to mono float32 samples at 44.1 kHz.
// WAV input at the analysis rate is decoded in-process; everything else
// goes through ffmpeg. The input is spooled to a per-job temp file so a
// one-hour track never has to live in memory twice.
func Decode(ctx context.Context, data []byte, mime string) (*PCMBuffer, error) {
	if !IsSupportedMime(mime) {
		return nil, errors.New(ErrUnsupportedMime).
			Component("audio").
			Category(errors.CategoryValidation).
			Context("mime", mime).
			Build()
	}

	if mime == MimeWAV {
		if buf, err := decodeWAVFast(data); err == nil {
			return buf, nil
		}
		// Fall through to ffmpeg for WAV variants the fast path rejects
		// (float encodings, odd rates, broken headers ffmpeg can salvage).
	}

	return decodeWithFFmpeg(ctx, data, mime)
}

// decodeWithFFmpeg spools the input and streams f32le mono 44.1 kHz
// samples from ffmpeg stdout.
func decodeWithFFmpeg(ctx context.Context, data []byte, mime string) (*PCMBuffer, error) {
	tmp, err := os.CreateTemp("", "automix-decode-*"+extForMime(mime))
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			FileContext(tmp.Name(), int64(len(data))).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, decodeTimeout)
		defer cancel()
	}

	out, err := RunFFmpeg(ctx, decodeArgs(tmp.Name()), nil)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("audio").
			Category(errors.CategoryDecode).
			Context("mime", mime).
			Build()
	}
	return pcmFromF32LE(out)
}

func decodeArgs(inputPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-",
	}
}

func extForMime(mime string) string {
	switch mime {
	case MimeMPEG:
		return ".mp3"
	case MimeWAV:
		return ".wav"
	default:
		return ".bin"
	}
}

// pcmFromF32LE reinterprets raw little-endian float32 bytes as samples.
func pcmFromF32LE(raw []byte) (*PCMBuffer, error) {
	if len(raw) < 4 {
		return nil, errors.Newf("decoded stream too short: %d bytes", len(raw)).
			Component("audio").
			Category(errors.CategoryDecode).
			Build()
	}
	n := len(raw) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return &PCMBuffer{Samples: samples, SampleRate: SampleRate, Channels: 1}, nil
}

// decodeWAVFast decodes integer-PCM WAV already at the analysis rate
// without spawning a subprocess. Stereo input is downmixed by averaging.
func decodeWAVFast(data []byte) (*PCMBuffer, error) {
	tmp, err := os.CreateTemp("", "automix-wav-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		tmp.Close()
		return nil, err
	}
	defer tmp.Close()

	decoder := wav.NewDecoder(tmp)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.NewStd("invalid WAV file format")
	}
	if int(decoder.SampleRate) != SampleRate {
		return nil, errors.Newf("sample rate %d needs resampling", decoder.SampleRate).Build()
	}
	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, errors.Newf("unsupported bit depth: %d", decoder.BitDepth).Build()
	}
	channels := int(decoder.NumChans)
	if channels != 1 && channels != 2 {
		return nil, errors.Newf("unsupported number of channels: %d", channels).Build()
	}

	intBuf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	divisor := float32(int64(1) << (decoder.BitDepth - 1))
	frames := len(intBuf.Data) / channels
	samples := make([]float32, frames)
	if channels == 1 {
		for i := 0; i < frames; i++ {
			samples[i] = float32(intBuf.Data[i]) / divisor
		}
	} else {
		for i := 0; i < frames; i++ {
			l := float32(intBuf.Data[i*2]) / divisor
			r := float32(intBuf.Data[i*2+1]) / divisor
			samples[i] = (l + r) / 2
		}
	}

	return &PCMBuffer{Samples: samples, SampleRate: SampleRate, Channels: 1}, nil
}
