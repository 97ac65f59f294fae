package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMBufferDuration(t *testing.T) {
	t.Parallel()

	buf := &PCMBuffer{Samples: make([]float32, SampleRate*3), SampleRate: SampleRate, Channels: 1}
	assert.InDelta(t, 3.0, buf.Duration(), 1e-9)

	empty := &PCMBuffer{}
	assert.Zero(t, empty.Duration())
}

func TestIsSupportedMime(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSupportedMime(MimeMPEG))
	assert.True(t, IsSupportedMime(MimeWAV))
	assert.False(t, IsSupportedMime("audio/flac"))
	assert.False(t, IsSupportedMime(""))
}

func TestPCMFromF32LERoundTrip(t *testing.T) {
	t.Parallel()

	want := []float32{0, 0.5, -0.5, 1, -1, 0.125}
	raw := make([]byte, len(want)*4)
	for i, s := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}

	buf, err := pcmFromF32LE(raw)
	require.NoError(t, err)
	assert.Equal(t, want, buf.Samples)
	assert.Equal(t, SampleRate, buf.SampleRate)
	assert.Equal(t, 1, buf.Channels)
}

func TestSetSampleRate(t *testing.T) {
	orig := SampleRate
	defer SetSampleRate(orig)

	SetSampleRate(48000)
	assert.Equal(t, 48000, SampleRate)
	args := decodeArgs("/tmp/in.mp3")
	assert.Contains(t, args, "48000")

	SetSampleRate(0)
	assert.Equal(t, 48000, SampleRate)
	SetSampleRate(-1)
	assert.Equal(t, 48000, SampleRate)
}

func TestSetDecodeTimeout(t *testing.T) {
	orig := decodeTimeout
	defer SetDecodeTimeout(orig)

	SetDecodeTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, decodeTimeout)

	SetDecodeTimeout(0)
	assert.Equal(t, 5*time.Second, decodeTimeout)
}

func TestPCMFromF32LETooShort(t *testing.T) {
	t.Parallel()

	_, err := pcmFromF32LE([]byte{1, 2})
	assert.Error(t, err)
}

func TestDecodeRejectsUnsupportedMime(t *testing.T) {
	t.Parallel()

	_, err := Decode(t.Context(), []byte{0, 1, 2}, "audio/ogg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMime)
}

func TestDecodeArgsShape(t *testing.T) {
	t.Parallel()

	args := decodeArgs("/tmp/in.mp3")
	assert.Contains(t, args, "f32le")
	assert.Contains(t, args, "/tmp/in.mp3")
	assert.Equal(t, "-", args[len(args)-1])
	// Mono downmix and analysis rate are non-negotiable for the analyzer.
	for i, a := range args {
		switch a {
		case "-ac":
			assert.Equal(t, "1", args[i+1])
		case "-ar":
			assert.Equal(t, "44100", args[i+1])
		}
	}
}

func TestExtForMime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".mp3", extForMime(MimeMPEG))
	assert.Equal(t, ".wav", extForMime(MimeWAV))
	assert.Equal(t, ".bin", extForMime("application/octet-stream"))
}
