package speaker

import "context"

var _ Provider = Single{}

// Single is the no-diarization provider: the whole recording is one
// turn by the fallback speaker. Used when diarization is disabled or no
// diarizer could be constructed.
type Single struct{}

func (Single) Turns(_ context.Context, samples []float32, sampleRate int) ([]Turn, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, nil
	}
	return []Turn{{
		Speaker: Fallback,
		Start:   0,
		End:     float64(len(samples)) / float64(sampleRate),
	}}, nil
}
