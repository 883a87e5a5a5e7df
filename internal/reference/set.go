// Package reference holds the curated reference images the classifier
// compares candidates against, and loads them from a directory, an HTTP
// origin or an S3 bucket.
package reference

import (
	"maps"
	"math"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

// Thresholds maps category names to similarity thresholds. Categories with no
// entry use Default.
type Thresholds struct {
	Default float64
	byName  map[string]float64
}

// NewThresholds validates and builds a threshold table.
func NewThresholds(def float64, byName map[string]float64) (Thresholds, error) {
	if err := checkThreshold("default", def); err != nil {
		return Thresholds{}, err
	}
	for name, v := range byName {
		if err := checkThreshold(name, v); err != nil {
			return Thresholds{}, err
		}
	}
	return Thresholds{Default: def, byName: maps.Clone(byName)}, nil
}

// DefaultThresholds returns normal 0.25, stake 0.35, default 0.25.
func DefaultThresholds() Thresholds {
	byName := maps.Clone(builtinThresholds)
	byName[NormalCategory] = DefaultNormalThreshold
	return Thresholds{Default: DefaultThreshold, byName: byName}
}

// For returns the threshold of name. An explicit entry wins even when zero.
func (t Thresholds) For(name string) float64 {
	if v, ok := t.byName[name]; ok {
		return v
	}
	return t.Default
}

func checkThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperrors.Newf(apperrors.ConfigInvalid, "threshold %s=%v outside [0,1]", name, v)
	}
	return nil
}

// Category is one scan unit: a name, its threshold and its reference images
// in manifest order.
type Category struct {
	Name      string
	Threshold float64
	Images    []*imaging.Canonical
}

// NewCategory builds a category, taking its threshold from th.
func NewCategory(name string, th Thresholds, images []*imaging.Canonical) Category {
	return Category{Name: name, Threshold: th.For(name), Images: images}
}

// Set is the reference data of a detector. Normal is scanned before Ads, and
// Ads are scanned in slice order. A Set is read-only once built.
type Set struct {
	Normal Category
	Ads    []Category
}

// Empty returns a set with no references, which classifies everything as
// not-ad.
func Empty() *Set {
	return &Set{Normal: Category{Name: NormalCategory, Threshold: DefaultNormalThreshold}}
}

// Size counts reference images across all categories.
func (s *Set) Size() int {
	if s == nil {
		return 0
	}
	n := len(s.Normal.Images)
	for _, c := range s.Ads {
		n += len(c.Images)
	}
	return n
}

// Info describes a category without its pixels.
type Info struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	Images    int     `json:"images"`
}

// Summary lists categories in scan order.
func (s *Set) Summary() []Info {
	if s == nil {
		return nil
	}
	out := make([]Info, 0, len(s.Ads)+1)
	out = append(out, Info{Name: s.Normal.Name, Threshold: s.Normal.Threshold, Images: len(s.Normal.Images)})
	for _, c := range s.Ads {
		out = append(out, Info{Name: c.Name, Threshold: c.Threshold, Images: len(c.Images)})
	}
	return out
}
