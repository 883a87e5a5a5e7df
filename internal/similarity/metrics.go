package similarity

import (
	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

func checkSize(a, b *imaging.Canonical) error {
	if a == nil || b == nil {
		return apperrors.New(apperrors.DimensionMismatch, "nil buffer")
	}
	if !a.SameSize(b) {
		return apperrors.Newf(apperrors.DimensionMismatch, "%dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}

// Pixel compares every PixelSampleStride-th pixel. Pixels where either side is
// background-like (very dark or very light) tolerate a larger color drift.
func Pixel(a, b *imaging.Canonical) (float64, error) {
	if err := checkSize(a, b); err != nil {
		return 0, err
	}

	similar, total := 0, 0
	p1, p2 := a.Pix, b.Pix
	for i := 0; i+2 < len(p1); i += imaging.BytesPerPixel * PixelSampleStride {
		r1, g1, b1 := int(p1[i]), int(p1[i+1]), int(p1[i+2])
		r2, g2, b2 := int(p2[i]), int(p2[i+1]), int(p2[i+2])

		diff := abs(r1-r2) + abs(g1-g2) + abs(b1-b2)
		tolerance := ForegroundTolerance
		if isBackground(r1+g1+b1) || isBackground(r2+g2+b2) {
			tolerance = BackgroundTolerance
		}
		if diff < tolerance {
			similar++
		}
		total++
	}

	if total == 0 {
		return 0, nil
	}
	return float64(similar) / float64(total), nil
}

func isBackground(brightness int) bool {
	return brightness < BackgroundDark || brightness > BackgroundLight
}

// Structural compares mean block brightness over non-overlapping
// BlockSize×BlockSize blocks. Remainder strips narrower than a block are ignored.
func Structural(a, b *imaging.Canonical) (float64, error) {
	if err := checkSize(a, b); err != nil {
		return 0, err
	}

	matches, total := 0, 0
	for y := 0; y+BlockSize <= a.Height; y += BlockSize {
		for x := 0; x+BlockSize <= a.Width; x += BlockSize {
			e1 := blockStrength(a, x, y)
			e2 := blockStrength(b, x, y)
			if diff := e1 - e2; diff < BlockTolerance && diff > -BlockTolerance {
				matches++
			}
			total++
		}
	}

	if total == 0 {
		return 0, nil
	}
	return float64(matches) / float64(total), nil
}

// blockStrength is the block's mean grayscale brightness in [0,1].
func blockStrength(c *imaging.Canonical, x0, y0 int) float64 {
	var sum float64
	stride := c.Width * imaging.BytesPerPixel
	for y := y0; y < y0+BlockSize; y++ {
		row := y * stride
		for x := x0; x < x0+BlockSize; x++ {
			i := row + x*imaging.BytesPerPixel
			sum += float64(int(c.Pix[i])+int(c.Pix[i+1])+int(c.Pix[i+2])) / 3
		}
	}
	return sum / (BlockSize * BlockSize * 255)
}

// Color returns the intersection-over-union of the two color histograms.
func Color(a, b *imaging.Canonical) (float64, error) {
	if err := checkSize(a, b); err != nil {
		return 0, err
	}

	h1 := histogram(a)
	h2 := histogram(b)

	intersection, union := 0, 0
	for i := range h1 {
		intersection += min(h1[i], h2[i])
		union += max(h1[i], h2[i])
	}

	if union == 0 {
		return 0, nil
	}
	return float64(intersection) / float64(union), nil
}

// histogram folds each pixel's 5-bit-per-channel composite index into a bucket.
// The fold is uneven across the RGB cube and is kept as is.
func histogram(c *imaging.Canonical) [ColorBuckets]int {
	var h [ColorBuckets]int
	p := c.Pix
	for i := 0; i+2 < len(p); i += imaging.BytesPerPixel {
		r := int(p[i] >> ColorShift)
		g := int(p[i+1] >> ColorShift)
		b := int(p[i+2] >> ColorShift)
		h[(r*ColorRedWeight+g*ColorGreenWeight+b)/ColorFold]++
	}
	return h
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
