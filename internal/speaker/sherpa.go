package speaker

import (
	"context"
	"fmt"
	"os"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

var _ Provider = (*Sherpa)(nil)

// SherpaConfig parameterizes the sherpa-onnx offline diarizer.
type SherpaConfig struct {
	// SegmentationModel is the path to the pyannote segmentation model.
	SegmentationModel string

	// EmbeddingModel is the path to the speaker embedding extractor
	// model (wespeaker or 3dspeaker).
	EmbeddingModel string

	// NumSpeakers pins the cluster count when > 0; otherwise the count
	// is inferred from ClusteringThreshold.
	NumSpeakers int

	// ClusteringThreshold steers automatic cluster detection. Zero means
	// the default 0.5.
	ClusteringThreshold float32

	// NumThreads caps ONNX runtime threads. Zero means 4.
	NumThreads int
}

// Sherpa diarizes through sherpa-onnx offline speaker diarization
// (pyannote segmentation + speaker embeddings + clustering).
//
// The native diarizer is not reentrant; Turns serializes on a mutex.
type Sherpa struct {
	diarizer *sherpa.OfflineSpeakerDiarization
	mu       sync.Mutex
}

// NewSherpa loads the diarization models. The caller must Close the
// returned provider to release native memory.
func NewSherpa(cfg SherpaConfig) (*Sherpa, error) {
	if _, err := os.Stat(cfg.SegmentationModel); err != nil {
		return nil, fmt.Errorf("sherpa: segmentation model: %w", err)
	}
	if _, err := os.Stat(cfg.EmbeddingModel); err != nil {
		return nil, fmt.Errorf("sherpa: embedding model: %w", err)
	}

	threads := cfg.NumThreads
	if threads <= 0 {
		threads = 4
	}
	threshold := cfg.ClusteringThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	clusters := cfg.NumSpeakers
	if clusters <= 0 {
		clusters = -1 // infer from threshold
	}

	sc := &sherpa.OfflineSpeakerDiarizationConfig{
		Segmentation: sherpa.OfflineSpeakerSegmentationModelConfig{
			Pyannote: sherpa.OfflineSpeakerSegmentationPyannoteModelConfig{
				Model: cfg.SegmentationModel,
			},
			NumThreads: threads,
			Provider:   "cpu",
		},
		Embedding: sherpa.SpeakerEmbeddingExtractorConfig{
			Model:      cfg.EmbeddingModel,
			NumThreads: threads,
			Provider:   "cpu",
		},
		Clustering: sherpa.FastClusteringConfig{
			NumClusters: clusters,
			Threshold:   threshold,
		},
		MinDurationOn:  0.3,
		MinDurationOff: 0.5,
	}

	diarizer := sherpa.NewOfflineSpeakerDiarization(sc)
	if diarizer == nil {
		return nil, fmt.Errorf("sherpa: create diarizer (segmentation=%s embedding=%s)",
			cfg.SegmentationModel, cfg.EmbeddingModel)
	}
	return &Sherpa{diarizer: diarizer}, nil
}

// Turns runs diarization over the full recording. The sample rate must
// match the model's expected rate (d.SampleRate, normally 16 kHz).
func (d *Sherpa) Turns(ctx context.Context, samples []float32, sampleRate int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.diarizer == nil {
		return nil, fmt.Errorf("sherpa: diarizer is closed")
	}
	if len(samples) == 0 {
		return nil, nil
	}
	if want := int(d.diarizer.SampleRate()); want > 0 && sampleRate != want {
		return nil, fmt.Errorf("sherpa: sample rate %d, want %d", sampleRate, want)
	}

	segments := d.diarizer.Process(samples)

	turns := make([]Turn, 0, len(segments))
	for _, seg := range segments {
		turns = append(turns, Turn{
			Speaker: Name(seg.Speaker),
			Start:   float64(seg.Start),
			End:     float64(seg.End),
		})
	}
	duration := float64(len(samples)) / float64(sampleRate)
	return Normalize(turns, duration), nil
}

// Close releases the native diarizer. Safe to call more than once.
func (d *Sherpa) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.diarizer != nil {
		sherpa.DeleteOfflineSpeakerDiarization(d.diarizer)
		d.diarizer = nil
	}
	return nil
}
