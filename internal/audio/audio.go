// Package audio decodes uploaded tracks to analysis-ready PCM and runs
// the external ffmpeg transcoder for decode and filter-graph execution.
// Analysis consumes mono float32 samples at the analysis rate; rendering
// re-reads the original sources to keep stereo.
package audio

// Supported upload container types.
const (
	MimeMPEG = "audio/mpeg"
	MimeWAV  = "audio/wav"
)

// SampleRate is the analysis sample rate in Hz. The decoder resamples
// every input to this rate; SetSampleRate overrides it at startup.
var SampleRate = 44100

// SetSampleRate overrides the analysis sample rate. Non-positive values
// are ignored.
func SetSampleRate(rate int) {
	if rate > 0 {
		SampleRate = rate
	}
}

// PCMBuffer holds decoded mono samples at the analysis sample rate.
type PCMBuffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the buffer length in seconds.
func (b *PCMBuffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// IsSupportedMime reports whether the service accepts the container type.
func IsSupportedMime(mime string) bool {
	return mime == MimeMPEG || mime == MimeWAV
}
