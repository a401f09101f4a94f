package speaker

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var _ Provider = (*Energy)(nil)

// Energy defaults, tuned for 16 kHz speech.
const (
	// energyFrameSec is the analysis frame length.
	energyFrameSec = 0.2

	// DefaultTurnSilenceSec is the silence gap that signals a probable
	// speaker change.
	DefaultTurnSilenceSec = 1.0
)

// Energy is a model-free two-speaker heuristic for dialogue recordings:
// frame energy splits the audio into speech runs separated by silence,
// and a silence gap of at least TurnSilenceSec flips attribution between
// two alternating speakers. It is deliberately crude; where real
// diarization models are available the sherpa provider should be used.
type Energy struct {
	// TurnSilenceSec overrides DefaultTurnSilenceSec when positive.
	TurnSilenceSec float64
}

func (e *Energy) Turns(ctx context.Context, samples []float32, sampleRate int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, nil
	}

	turnGap := e.TurnSilenceSec
	if turnGap <= 0 {
		turnGap = DefaultTurnSilenceSec
	}

	frameLen := int(energyFrameSec * float64(sampleRate))
	if frameLen < 1 {
		frameLen = 1
	}

	energies := frameEnergies(samples, frameLen)
	threshold := silenceThreshold(energies)

	// Walk frames, emitting one turn per speech run. A long enough
	// silence between runs flips the speaker.
	var (
		turns      []Turn
		speaker    = 0
		runStart   = -1 // frame index of current speech run, -1 when silent
		silentRun  = 0  // consecutive silent frames
		frameSec   = float64(frameLen) / float64(sampleRate)
		gapFrames  = int(math.Ceil(turnGap / frameSec))
		endOfAudio = float64(len(samples)) / float64(sampleRate)
	)

	flush := func(endFrame int) {
		if runStart < 0 {
			return
		}
		start := float64(runStart) * frameSec
		end := float64(endFrame) * frameSec
		if end > endOfAudio {
			end = endOfAudio
		}
		turns = append(turns, Turn{Speaker: Name(speaker), Start: start, End: end})
		runStart = -1
	}

	for i, energy := range energies {
		if energy >= threshold {
			if runStart < 0 {
				if len(turns) > 0 && silentRun >= gapFrames {
					speaker = 1 - speaker
				}
				runStart = i
			}
			silentRun = 0
		} else {
			flush(i)
			silentRun++
		}
	}
	flush(len(energies))

	return Normalize(turns, endOfAudio), nil
}

// frameEnergies returns the RMS energy of each fixed-size frame.
func frameEnergies(samples []float32, frameLen int) []float64 {
	n := (len(samples) + frameLen - 1) / frameLen
	energies := make([]float64, 0, n)
	for off := 0; off < len(samples); off += frameLen {
		end := min(off+frameLen, len(samples))
		var sum float64
		for _, s := range samples[off:end] {
			sum += float64(s) * float64(s)
		}
		energies = append(energies, math.Sqrt(sum/float64(end-off)))
	}
	return energies
}

// silenceThreshold derives an adaptive cutoff between silence and speech
// from the energy distribution: halfway between the quiet floor and the
// mean, with a small absolute minimum so digital silence never counts as
// speech.
func silenceThreshold(energies []float64) float64 {
	const absoluteFloor = 1e-4

	if len(energies) == 0 {
		return absoluteFloor
	}
	sorted := make([]float64, len(energies))
	copy(sorted, energies)
	sort.Float64s(sorted)

	floor := stat.Quantile(0.1, stat.Empirical, sorted, nil)
	mean := stat.Mean(sorted, nil)
	threshold := floor + (mean-floor)/2
	if threshold < absoluteFloor {
		threshold = absoluteFloor
	}
	return threshold
}
