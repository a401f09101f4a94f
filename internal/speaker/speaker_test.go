package speaker_test

import (
	"context"
	"testing"

	"github.com/tamlil/tamlil/internal/engine"
	"github.com/tamlil/tamlil/internal/speaker"
)

func TestLabelMajorityOverlap(t *testing.T) {
	t.Parallel()

	turns := []speaker.Turn{
		{Speaker: "SPEAKER_1", Start: 0, End: 10},
		{Speaker: "SPEAKER_2", Start: 10, End: 20},
	}

	tests := []struct {
		name string
		seg  engine.Segment
		want string
	}{
		{"fully inside first", engine.Segment{Start: 2, End: 8}, "SPEAKER_1"},
		{"fully inside second", engine.Segment{Start: 12, End: 18}, "SPEAKER_2"},
		{"mostly first", engine.Segment{Start: 6, End: 12}, "SPEAKER_1"},
		{"mostly second", engine.Segment{Start: 9, End: 16}, "SPEAKER_2"},
		{"no overlap falls back", engine.Segment{Start: 30, End: 35}, "SPEAKER_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := speaker.Label([]engine.Segment{tt.seg}, turns)
			if got[0].Speaker != tt.want {
				t.Errorf("speaker = %q, want %q", got[0].Speaker, tt.want)
			}
		})
	}
}

func TestLabelTieGoesToEarlierTurn(t *testing.T) {
	t.Parallel()

	turns := []speaker.Turn{
		{Speaker: "SPEAKER_2", Start: 5, End: 10},
		{Speaker: "SPEAKER_1", Start: 0, End: 5},
	}
	// Segment [0,10) overlaps both by exactly 5s; SPEAKER_1's turn
	// starts earlier.
	got := speaker.Label([]engine.Segment{{Start: 0, End: 10}}, turns)
	if got[0].Speaker != "SPEAKER_1" {
		t.Errorf("speaker = %q, want SPEAKER_1", got[0].Speaker)
	}
}

func TestLabelPreservesTimingAndText(t *testing.T) {
	t.Parallel()

	segs := []engine.Segment{{Start: 1, End: 2, Text: "שלום"}}
	got := speaker.Label(segs, []speaker.Turn{{Speaker: "SPEAKER_2", Start: 0, End: 5}})
	if got[0].Start != 1 || got[0].End != 2 || got[0].Text != "שלום" {
		t.Errorf("segment mutated: %+v", got[0])
	}
	if got[0].Speaker != "SPEAKER_2" {
		t.Errorf("speaker = %q", got[0].Speaker)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	turns := []speaker.Turn{
		{Speaker: "SPEAKER_1", Start: 8, End: 12},
		{Speaker: "SPEAKER_1", Start: -1, End: 4},
		{Speaker: "SPEAKER_1", Start: 3, End: 8},
		{Speaker: "SPEAKER_2", Start: 12, End: 99},
		{Speaker: "SPEAKER_2", Start: 20, End: 20}, // empty, dropped
	}

	got := speaker.Normalize(turns, 30)
	want := []speaker.Turn{
		{Speaker: "SPEAKER_1", Start: 0, End: 12},
		{Speaker: "SPEAKER_2", Start: 12, End: 30},
	}
	if len(got) != len(want) {
		t.Fatalf("turns = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSingle(t *testing.T) {
	t.Parallel()

	turns, err := speaker.Single{}.Turns(context.Background(), make([]float32, 32000), 16000)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Speaker != speaker.Fallback || turns[0].Start != 0 || turns[0].End != 2 {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestSingleEmptyAudio(t *testing.T) {
	t.Parallel()

	turns, err := speaker.Single{}.Turns(context.Background(), nil, 16000)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %+v, want none", turns)
	}
}

// synth builds amplitude-coded audio: each run is (seconds, amplitude).
func synth(sampleRate int, runs ...[2]float64) []float32 {
	var samples []float32
	for _, run := range runs {
		n := int(run[0] * float64(sampleRate))
		amp := float32(run[1])
		for i := 0; i < n; i++ {
			v := amp
			if i%2 == 1 {
				v = -amp
			}
			samples = append(samples, v)
		}
	}
	return samples
}

func TestEnergyAlternatesOnSilenceGaps(t *testing.T) {
	t.Parallel()

	const rate = 1000
	samples := synth(rate,
		[2]float64{3, 0.5}, // speech
		[2]float64{2, 0},   // long silence: speaker change
		[2]float64{3, 0.5}, // speech
	)

	turns, err := (&speaker.Energy{}).Turns(context.Background(), samples, rate)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %+v, want 2", turns)
	}
	if turns[0].Speaker != "SPEAKER_1" || turns[1].Speaker != "SPEAKER_2" {
		t.Errorf("speakers = %q, %q", turns[0].Speaker, turns[1].Speaker)
	}
	if turns[0].Start > turns[0].End || turns[1].Start < turns[0].End {
		t.Errorf("turn spans out of order: %+v", turns)
	}
}

func TestEnergyShortPauseKeepsSpeaker(t *testing.T) {
	t.Parallel()

	const rate = 1000
	samples := synth(rate,
		[2]float64{2, 0.5},
		[2]float64{0.4, 0}, // below the turn gap
		[2]float64{2, 0.5},
	)

	turns, err := (&speaker.Energy{}).Turns(context.Background(), samples, rate)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	for _, turn := range turns {
		if turn.Speaker != "SPEAKER_1" {
			t.Errorf("speaker = %q, want SPEAKER_1 for all turns: %+v", turn.Speaker, turns)
		}
	}
}

func TestEnergyEmptyAudio(t *testing.T) {
	t.Parallel()

	turns, err := (&speaker.Energy{}).Turns(context.Background(), nil, 16000)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %+v, want none", turns)
	}
}
