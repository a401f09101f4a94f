package pcm_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tamlil/tamlil/internal/pcm"
)

// writeTestWAV writes a 16-bit WAV file with a 440Hz tone of the given
// duration, returning its path.
func writeTestWAV(t *testing.T, rate, channels int, seconds float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test wav: %v", err)
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	frames := int(float64(rate) * seconds)
	data := make([]int, frames*channels)
	for i := range frames {
		v := int(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := range channels {
			data[i*channels+ch] = v
		}
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write test wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close test wav: %v", err)
	}
	return path
}

func TestLoad_MonoAtTargetRate(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 16000, 1, 2.0)
	buf, err := pcm.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if buf.SampleRate() != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", buf.SampleRate())
	}
	if got := buf.Len(); got != 32000 {
		t.Errorf("Len() = %d, want 32000", got)
	}
	if d := buf.Duration(); math.Abs(d-2.0) > 0.001 {
		t.Errorf("Duration() = %v, want 2.0", d)
	}
	if buf.SizeBytes() == 0 {
		t.Error("SizeBytes() = 0, want > 0")
	}
}

func TestLoad_DownmixesStereo(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 16000, 2, 1.0)
	buf, err := pcm.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := buf.Len(); got != 16000 {
		t.Errorf("Len() = %d, want 16000 (stereo frames down-mixed to mono)", got)
	}
}

func TestLoad_ResamplesToTargetRate(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 8000, 1, 1.0)
	buf, err := pcm.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if buf.SampleRate() != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", buf.SampleRate())
	}
	if d := buf.Duration(); math.Abs(d-1.0) > 0.01 {
		t.Errorf("Duration() = %v, want ~1.0 after resample", d)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		_, err := pcm.Load(filepath.Join(t.TempDir(), "audio.mp3"), 16000)
		if !errors.Is(err, pcm.ErrUnsupportedFormat) {
			t.Errorf("Load() error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := pcm.Load(filepath.Join(t.TempDir(), "missing.wav"), 16000)
		if err == nil {
			t.Error("Load() expected error for missing file")
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "garbage.wav")
		if err := os.WriteFile(path, []byte("not a wav file at all"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := pcm.Load(path, 16000)
		if !errors.Is(err, pcm.ErrCorruptAudio) {
			t.Errorf("Load() error = %v, want ErrCorruptAudio", err)
		}
	})

	t.Run("empty audio", func(t *testing.T) {
		t.Parallel()
		path := writeTestWAV(t, 16000, 1, 0)
		_, err := pcm.Load(path, 16000)
		if !errors.Is(err, pcm.ErrEmptyAudio) {
			t.Errorf("Load() error = %v, want ErrEmptyAudio", err)
		}
	})
}

func TestBuffer_Slice(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 16000, 1, 2.0)
	buf, err := pcm.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		startSec float64
		endSec   float64
		wantLen  int
	}{
		{name: "full range", startSec: 0, endSec: 2.0, wantLen: 32000},
		{name: "half second window", startSec: 0.5, endSec: 1.0, wantLen: 8000},
		{name: "end clamped", startSec: 1.5, endSec: 10.0, wantLen: 8000},
		{name: "start clamped", startSec: -1.0, endSec: 0.5, wantLen: 8000},
		{name: "inverted range", startSec: 1.0, endSec: 0.5, wantLen: 0},
		{name: "past end", startSec: 5.0, endSec: 6.0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buf.Slice(tt.startSec, tt.endSec)
			if len(got) != tt.wantLen {
				t.Errorf("Slice(%v, %v) len = %d, want %d",
					tt.startSec, tt.endSec, len(got), tt.wantLen)
			}
		})
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	t.Run("identity", func(t *testing.T) {
		t.Parallel()
		in := []float32{0.1, 0.2, 0.3}
		got := pcm.Resample(in, 16000, 16000)
		if len(got) != 3 {
			t.Errorf("Resample() len = %d, want 3", len(got))
		}
	})

	t.Run("upsample doubles length", func(t *testing.T) {
		t.Parallel()
		in := make([]float32, 8000)
		got := pcm.Resample(in, 8000, 16000)
		if len(got) != 16000 {
			t.Errorf("Resample() len = %d, want 16000", len(got))
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		t.Parallel()
		in := make([]float32, 32000)
		got := pcm.Resample(in, 32000, 16000)
		if len(got) != 16000 {
			t.Errorf("Resample() len = %d, want 16000", len(got))
		}
	})
}

// TestEncodeWAV_RoundTrip encodes samples to WAV bytes and decodes them back
// through Load, verifying the engines' HTTP payloads are valid WAV.
func TestEncodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	data := pcm.EncodeWAV(samples, 16000)
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("EncodeWAV() len = %d, want %d", len(data), 44+len(samples)*2)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	buf, err := pcm.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if buf.Len() != len(samples) {
		t.Fatalf("round-trip Len() = %d, want %d", buf.Len(), len(samples))
	}

	got := buf.Slice(0, 1.0)
	for i := 0; i < len(got); i += 1000 {
		if math.Abs(float64(got[i]-samples[i])) > 0.001 {
			t.Errorf("sample %d = %v, want ~%v", i, got[i], samples[i])
		}
	}
}
