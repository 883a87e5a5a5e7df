// Package classifier decides whether a canonical image is an advertisement by
// scanning a reference set in a fixed order and stopping at the first
// reference whose weighted similarity exceeds its category threshold.
package classifier

import (
	"context"

	"github.com/GriffinCanCode/adscan/internal/imaging"
	"github.com/GriffinCanCode/adscan/internal/reference"
)

// Scorer computes the aggregate similarity of two canonical images.
// similarity.Scorer implements it.
type Scorer interface {
	Score(a, b *imaging.Canonical) (float64, error)
}

// Classify is ClassifyContext without cancellation.
func Classify(candidate *imaging.Canonical, set *reference.Set, scorer Scorer) Result {
	return ClassifyContext(context.Background(), candidate, set, scorer)
}

// ClassifyContext scans normal references first; any score above the normal
// threshold means not-ad regardless of ad matches. Advertisers are then
// scanned in set order and the first image above its category threshold wins.
// Comparisons that fail are skipped. Once ctx is done the scan stops with
// not-ad.
func ClassifyContext(ctx context.Context, candidate *imaging.Canonical, set *reference.Set, scorer Scorer) Result {
	if set == nil {
		return NotAd()
	}
	if anyAbove(ctx, candidate, set.Normal, scorer) {
		return NotAd()
	}
	for _, cat := range set.Ads {
		if anyAbove(ctx, candidate, cat, scorer) {
			return Ad(cat.Name)
		}
	}
	return NotAd()
}

func anyAbove(ctx context.Context, candidate *imaging.Canonical, cat reference.Category, scorer Scorer) bool {
	for _, ref := range cat.Images {
		if ctx.Err() != nil {
			return false
		}
		score, err := scorer.Score(candidate, ref)
		if err != nil {
			continue
		}
		if score > cat.Threshold {
			return true
		}
	}
	return false
}
