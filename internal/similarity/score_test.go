package similarity

import (
	"math"
	"testing"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

func TestDefaultWeightsValid(t *testing.T) {
	w := DefaultWeights()
	if w.Pixel != 0.4 || w.Structural != 0.4 || w.Color != 0.2 {
		t.Errorf("DefaultWeights() = %+v", w)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"even thirds", Weights{1.0 / 3, 1.0 / 3, 1.0 / 3}, true},
		{"pixel only", Weights{1, 0, 0}, true},
		{"sum too low", Weights{0.4, 0.4, 0.1}, false},
		{"negative", Weights{1.2, -0.2, 0}, false},
		{"NaN", Weights{math.NaN(), 0.5, 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !apperrors.IsCode(err, apperrors.ConfigInvalid) {
				t.Errorf("Validate() = %v, want ConfigInvalid", err)
			}
		})
	}

	if _, err := NewScorer(Weights{0.5, 0.5, 0.5}); err == nil {
		t.Error("NewScorer should reject weights summing to 1.5")
	}
}

func TestCombine(t *testing.T) {
	w := DefaultWeights()
	tests := []struct {
		triple Triple
		want   float64
	}{
		{Triple{1, 1, 1}, 1},
		{Triple{0, 0, 0}, 0},
		{Triple{1, 0, 0}, 0.4},
		{Triple{0, 1, 0}, 0.4},
		{Triple{0, 0, 1}, 0.2},
		{Triple{0.5, 0.25, 1}, 0.5},
	}

	for _, tt := range tests {
		if got := w.Combine(tt.triple); math.Abs(got-tt.want) > eps {
			t.Errorf("Combine(%+v) = %v, want %v", tt.triple, got, tt.want)
		}
	}
}

func TestScoreRangeAndIdentity(t *testing.T) {
	var s Scorer
	a := pattern(imaging.Size, imaging.Size, 5)
	b := pattern(imaging.Size, imaging.Size, 17)

	same, err := s.Score(a, clone(a))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same-1) > eps {
		t.Errorf("Score(a, a) = %v, want 1", same)
	}

	diff, _ := s.Score(a, b)
	if diff < 0 || diff > 1 {
		t.Errorf("Score(a, b) = %v outside [0,1]", diff)
	}
	triple, _ := s.Compare(a, b)
	if triple.Pixel == 1 && triple.Structural == 1 && triple.Color == 1 {
		t.Fatal("test images unexpectedly identical under every metric")
	}
	if diff >= 1-eps {
		t.Errorf("Score(a, b) = %v, want < 1 when a metric is below 1", diff)
	}
}

func TestScoreDimensionMismatch(t *testing.T) {
	var s Scorer
	_, err := s.Score(fill(8, 8, 0, 0, 0), fill(16, 8, 0, 0, 0))
	if !apperrors.IsCode(err, apperrors.DimensionMismatch) {
		t.Errorf("Score() error = %v, want DimensionMismatch", err)
	}
}

func TestScorerCustomWeights(t *testing.T) {
	s, err := NewScorer(Weights{Pixel: 0, Structural: 0, Color: 1})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.Score(fill(4, 4, 0, 0, 0), fill(4, 4, 255, 255, 255))
	if got != 0 {
		t.Errorf("color-only Score(black, white) = %v, want 0", got)
	}
}
