// Package pcm loads audio files into a shared, immutable mono PCM buffer.
//
// The file is decoded exactly once; every later access is a sample-index
// slice into the same float32 buffer, so workers can read concurrently
// without copies or locks. Only WAV input is decoded here; other container
// formats are converted to WAV up front by the ffmpeg bridge.
package pcm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TargetSampleRate is the sample rate all engines consume.
// 16 kHz mono is the native input of whisper-family and pyannote models.
const TargetSampleRate = 16000

// decodeBufferSamples is the per-read decode buffer size (about 8s at 16 kHz).
const decodeBufferSamples = 131072

// Buffer is an immutable mono PCM buffer decoded from one audio file.
// It is safe for concurrent read after Load returns.
type Buffer struct {
	samples []float32
	rate    int
	path    string
	size    int64
}

// Load decodes the WAV file at path into a mono buffer at targetRate Hz.
// Multi-channel input is down-mixed by averaging; other sample rates are
// resampled. The file descriptor is released before Load returns.
func Load(path string, targetRate int) (*Buffer, error) {
	if targetRate <= 0 {
		targetRate = TargetSampleRate
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" && ext != ".wave" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path) // #nosec G304 -- path is validated caller input
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}

	samples, rate, err := decodeWAV(f)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAudio, path)
	}

	if rate != targetRate {
		samples = Resample(samples, rate, targetRate)
		rate = targetRate
	}

	return &Buffer{
		samples: samples,
		rate:    rate,
		path:    path,
		size:    info.Size(),
	}, nil
}

// decodeWAV reads the whole WAV stream into mono float32 samples.
func decodeWAV(f *os.File) ([]float32, int, error) {
	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid WAV file", ErrCorruptAudio)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, 0, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}
	channels := int(decoder.NumChans)
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	rate := int(decoder.SampleRate)
	if rate <= 0 {
		return nil, 0, fmt.Errorf("%w: sample rate %d", ErrCorruptAudio, rate)
	}

	divisor := float32(int64(1) << (bitDepth - 1))
	buf := &audio.IntBuffer{
		Data:   make([]int, decodeBufferSamples*channels),
		Format: &audio.Format{SampleRate: rate, NumChannels: channels},
	}

	var mono []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
		}
		if n == 0 {
			break
		}
		frames := n / channels
		for i := range frames {
			var sum float32
			for ch := range channels {
				sum += float32(buf.Data[i*channels+ch]) / divisor
			}
			mono = append(mono, sum/float32(channels))
		}
	}

	return mono, rate, nil
}

// FromSamples wraps already-decoded mono samples in a Buffer. Used by
// decoders that produce PCM without a backing WAV file, and by tests.
func FromSamples(samples []float32, rate int) *Buffer {
	return &Buffer{samples: samples, rate: rate}
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.rate }

// Path returns the decoded file's path.
func (b *Buffer) Path() string { return b.path }

// SizeBytes returns the source file size.
func (b *Buffer) SizeBytes() int64 { return b.size }

// Len returns the number of samples in the buffer.
func (b *Buffer) Len() int { return len(b.samples) }

// Duration returns the audio length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.samples)) / float64(b.rate)
}

// Slice returns a read-only view of the samples between startSec and endSec,
// clamped to the buffer bounds. The returned slice aliases the shared buffer
// and must not be mutated.
func (b *Buffer) Slice(startSec, endSec float64) []float32 {
	lo := int(startSec * float64(b.rate))
	hi := int(endSec * float64(b.rate))
	lo = max(lo, 0)
	hi = min(hi, len(b.samples))
	if lo >= hi {
		return nil
	}
	return b.samples[lo:hi:hi]
}

// Resample converts samples from fromRate to toRate by linear interpolation.
// Sufficient for speech models; chosen over windowed sinc for predictability.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
