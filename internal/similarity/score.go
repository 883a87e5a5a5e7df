package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

// Triple holds the three metric scores of one comparison.
type Triple struct {
	Pixel      float64 `json:"pixel"`
	Structural float64 `json:"structural"`
	Color      float64 `json:"color"`
}

func (t Triple) vector() []float64 { return []float64{t.Pixel, t.Structural, t.Color} }

// Weights are the linear coefficients of the aggregate score.
type Weights struct {
	Pixel      float64 `json:"pixel" yaml:"pixel"`
	Structural float64 `json:"structural" yaml:"structural"`
	Color      float64 `json:"color" yaml:"color"`
}

// DefaultWeights returns 0.4 / 0.4 / 0.2.
func DefaultWeights() Weights {
	return Weights{Pixel: DefaultPixelWeight, Structural: DefaultStructuralWeight, Color: DefaultColorWeight}
}

func (w Weights) vector() []float64 { return []float64{w.Pixel, w.Structural, w.Color} }

// Validate checks each weight is in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	v := w.vector()
	for _, x := range v {
		if x < 0 || x > 1 || math.IsNaN(x) {
			return apperrors.Newf(apperrors.ConfigInvalid, "weight %v outside [0,1]", x)
		}
	}
	if sum := floats.Sum(v); math.Abs(sum-1) > weightSumEpsilon {
		return apperrors.Newf(apperrors.ConfigInvalid, "weights sum to %v, want 1", sum)
	}
	return nil
}

// Combine returns the weighted score of t, clamped to [0,1] against rounding.
func (w Weights) Combine(t Triple) float64 {
	return math.Max(0, math.Min(1, floats.Dot(w.vector(), t.vector())))
}

// Scorer computes aggregate similarity with fixed weights. The zero value
// uses DefaultWeights.
type Scorer struct {
	weights Weights
	set     bool
}

// NewScorer returns a Scorer for w. Invalid weights are rejected.
func NewScorer(w Weights) (Scorer, error) {
	if err := w.Validate(); err != nil {
		return Scorer{}, err
	}
	return Scorer{weights: w, set: true}, nil
}

// Weights returns the weights in use.
func (s Scorer) Weights() Weights {
	if !s.set {
		return DefaultWeights()
	}
	return s.weights
}

// Compare runs all three metrics.
func (s Scorer) Compare(a, b *imaging.Canonical) (Triple, error) {
	var t Triple
	var err error
	if t.Pixel, err = Pixel(a, b); err != nil {
		return Triple{}, err
	}
	if t.Structural, err = Structural(a, b); err != nil {
		return Triple{}, err
	}
	if t.Color, err = Color(a, b); err != nil {
		return Triple{}, err
	}
	return t, nil
}

// Score returns the weighted aggregate of Compare.
func (s Scorer) Score(a, b *imaging.Canonical) (float64, error) {
	t, err := s.Compare(a, b)
	if err != nil {
		return 0, err
	}
	return s.Weights().Combine(t), nil
}
