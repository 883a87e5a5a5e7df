package classifier

import (
	"context"

	"github.com/GriffinCanCode/adscan/internal/imaging"
	"github.com/GriffinCanCode/adscan/internal/reference"
)

// CategoryReport is the best score a candidate reached in one category.
type CategoryReport struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	MaxScore  float64 `json:"maxScore"`
	Compared  int     `json:"compared"`
	Exceeded  bool    `json:"exceeded"`
}

// Report is Explain's output.
type Report struct {
	Result     Result           `json:"result"`
	Categories []CategoryReport `json:"categories"`
}

// Explain scores the candidate against every reference, without
// short-circuiting, and reports the per-category maxima. Report.Result always
// equals what Classify returns for the same inputs.
func Explain(ctx context.Context, candidate *imaging.Canonical, set *reference.Set, scorer Scorer) Report {
	rep := Report{Result: NotAd()}
	if set == nil {
		return rep
	}

	normal := scan(ctx, candidate, set.Normal, scorer)
	rep.Categories = append(rep.Categories, normal)
	decided := normal.Exceeded

	for _, cat := range set.Ads {
		cr := scan(ctx, candidate, cat, scorer)
		rep.Categories = append(rep.Categories, cr)
		if !decided && cr.Exceeded {
			rep.Result = Ad(cat.Name)
			decided = true
		}
	}
	if ctx.Err() != nil {
		rep.Result = NotAd()
	}
	return rep
}

func scan(ctx context.Context, candidate *imaging.Canonical, cat reference.Category, scorer Scorer) CategoryReport {
	cr := CategoryReport{Name: cat.Name, Threshold: cat.Threshold}
	for _, ref := range cat.Images {
		if ctx.Err() != nil {
			break
		}
		score, err := scorer.Score(candidate, ref)
		if err != nil {
			continue
		}
		cr.Compared++
		cr.MaxScore = max(cr.MaxScore, score)
	}
	cr.Exceeded = cr.Compared > 0 && cr.MaxScore > cat.Threshold
	return cr
}
