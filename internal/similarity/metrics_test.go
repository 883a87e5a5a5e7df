package similarity

import (
	"math"
	"testing"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

const eps = 1e-12

func fill(w, h int, r, g, b byte) *imaging.Canonical {
	pix := make([]byte, w*h*imaging.BytesPerPixel)
	for i := 0; i < len(pix); i += imaging.BytesPerPixel {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	c, _ := imaging.New(w, h, pix)
	return c
}

// pattern produces a deterministic, non-uniform buffer.
func pattern(w, h int, seed int) *imaging.Canonical {
	pix := make([]byte, w*h*imaging.BytesPerPixel)
	for i := range pix {
		pix[i] = byte((i*seed + i/7*13 + seed*29) % 256)
	}
	c, _ := imaging.New(w, h, pix)
	return c
}

func clone(c *imaging.Canonical) *imaging.Canonical {
	pix := make([]byte, len(c.Pix))
	copy(pix, c.Pix)
	out, _ := imaging.New(c.Width, c.Height, pix)
	return out
}

type metric func(a, b *imaging.Canonical) (float64, error)

var metrics = map[string]metric{
	"pixel":      Pixel,
	"structural": Structural,
	"color":      Color,
}

func TestMetricsIdentical(t *testing.T) {
	inputs := map[string]*imaging.Canonical{
		"dark background":  fill(imaging.Size, imaging.Size, 0, 0, 0),
		"light background": fill(imaging.Size, imaging.Size, 255, 255, 255),
		"foreground":       fill(imaging.Size, imaging.Size, 120, 90, 60),
		"pattern":          pattern(imaging.Size, imaging.Size, 7),
	}

	for mname, m := range metrics {
		for iname, img := range inputs {
			got, err := m(img, clone(img))
			if err != nil {
				t.Fatalf("%s(%s) error = %v", mname, iname, err)
			}
			if got != 1 {
				t.Errorf("%s(%s, copy) = %v, want 1", mname, iname, got)
			}
		}
	}
}

func TestMetricsSymmetric(t *testing.T) {
	a := pattern(imaging.Size, imaging.Size, 3)
	b := pattern(imaging.Size, imaging.Size, 11)

	for name, m := range metrics {
		ab, err := m(a, b)
		if err != nil {
			t.Fatal(err)
		}
		ba, _ := m(b, a)
		if ab != ba {
			t.Errorf("%s not symmetric: %v vs %v", name, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("%s = %v outside [0,1]", name, ab)
		}
	}
}

func TestMetricsDimensionMismatch(t *testing.T) {
	a := fill(16, 16, 1, 1, 1)
	b := fill(16, 8, 1, 1, 1)

	for name, m := range metrics {
		if _, err := m(a, b); !apperrors.IsCode(err, apperrors.DimensionMismatch) {
			t.Errorf("%s error = %v, want DimensionMismatch", name, err)
		}
		if _, err := m(a, nil); !apperrors.IsCode(err, apperrors.DimensionMismatch) {
			t.Errorf("%s(nil) error = %v, want DimensionMismatch", name, err)
		}
	}
}

func TestPixelTolerances(t *testing.T) {
	tests := []struct {
		name string
		a, b [3]byte
		want float64
	}{
		// brightness 300 and 420: both foreground, diff 120 >= 80
		{"foreground drift rejected", [3]byte{100, 100, 100}, [3]byte{140, 140, 140}, 0},
		// diff 60 < 80
		{"foreground drift accepted", [3]byte{100, 100, 100}, [3]byte{120, 120, 120}, 1},
		// brightness 90 is background, diff 120 < 150
		{"background drift accepted", [3]byte{30, 30, 30}, [3]byte{70, 70, 70}, 1},
		// brightness 660 is background, diff 150 is not < 150
		{"background drift rejected", [3]byte{220, 220, 220}, [3]byte{170, 170, 170}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := fill(8, 8, tt.a[0], tt.a[1], tt.a[2])
			b := fill(8, 8, tt.b[0], tt.b[1], tt.b[2])
			got, err := Pixel(a, b)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPixelSamplesEveryFourthPixel(t *testing.T) {
	a := fill(8, 1, 100, 100, 100)
	b := fill(8, 1, 100, 100, 100)
	// pixels 1-3 and 5-7 are never sampled
	for _, px := range []int{1, 2, 3, 5, 6, 7} {
		b.Pix[px*4] = 255
	}
	got, _ := Pixel(a, b)
	if got != 1 {
		t.Errorf("Pixel() = %v, want 1 (unsampled pixels ignored)", got)
	}

	b.Pix[4*4] = 255
	got, _ = Pixel(a, b)
	if got != 0.5 {
		t.Errorf("Pixel() = %v, want 0.5", got)
	}
}

func TestPixelEmpty(t *testing.T) {
	a := fill(0, 0, 0, 0, 0)
	got, err := Pixel(a, clone(a))
	if err != nil || got != 0 {
		t.Errorf("Pixel(empty) = (%v, %v), want (0, nil)", got, err)
	}
}

func TestStructuralBlocks(t *testing.T) {
	// 16x16 = four blocks; darken the top-left block on one side only
	a := fill(16, 16, 128, 128, 128)
	b := fill(16, 16, 128, 128, 128)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := (y*16 + x) * 4
			b.Pix[i], b.Pix[i+1], b.Pix[i+2] = 0, 0, 0
		}
	}
	got, _ := Structural(a, b)
	if got != 0.75 {
		t.Errorf("Structural() = %v, want 0.75", got)
	}
}

func TestStructuralIgnoresRemainder(t *testing.T) {
	// 12x8: one full block, a 4-pixel strip that must not count
	a := fill(12, 8, 128, 128, 128)
	b := fill(12, 8, 128, 128, 128)
	for y := 0; y < 8; y++ {
		for x := 8; x < 12; x++ {
			i := (y*12 + x) * 4
			b.Pix[i], b.Pix[i+1], b.Pix[i+2] = 255, 255, 255
		}
	}
	got, _ := Structural(a, b)
	if got != 1 {
		t.Errorf("Structural() = %v, want 1", got)
	}
}

func TestStructuralSmallerThanBlock(t *testing.T) {
	a := fill(7, 7, 10, 10, 10)
	got, err := Structural(a, clone(a))
	if err != nil || got != 0 {
		t.Errorf("Structural(7x7) = (%v, %v), want (0, nil)", got, err)
	}
}

func TestStructuralTolerance(t *testing.T) {
	// mean brightness 0 vs 76/255 ~= 0.298 matches, 77/255 ~= 0.302 does not
	a := fill(8, 8, 0, 0, 0)
	if got, _ := Structural(a, fill(8, 8, 76, 76, 76)); got != 1 {
		t.Errorf("Structural(0 vs 76) = %v, want 1", got)
	}
	if got, _ := Structural(a, fill(8, 8, 77, 77, 77)); got != 0 {
		t.Errorf("Structural(0 vs 77) = %v, want 0", got)
	}
}

func TestColorEmptyHistograms(t *testing.T) {
	a := fill(0, 0, 0, 0, 0)
	got, err := Color(a, clone(a))
	if err != nil || got != 0 {
		t.Errorf("Color(empty) = (%v, %v), want (0, nil)", got, err)
	}
}

func TestColorDisjoint(t *testing.T) {
	got, _ := Color(fill(4, 4, 0, 0, 0), fill(4, 4, 255, 255, 255))
	if got != 0 {
		t.Errorf("Color(black, white) = %v, want 0", got)
	}
}

func TestColorHalfOverlap(t *testing.T) {
	// a: 2 black + 2 white, b: 4 black -> intersection 2, union 4+2
	a := fill(2, 2, 0, 0, 0)
	a.Pix[8], a.Pix[9], a.Pix[10] = 255, 255, 255
	a.Pix[12], a.Pix[13], a.Pix[14] = 255, 255, 255
	b := fill(2, 2, 0, 0, 0)

	got, _ := Color(a, b)
	if math.Abs(got-2.0/6.0) > eps {
		t.Errorf("Color() = %v, want %v", got, 2.0/6.0)
	}
}

func TestHistogramFolding(t *testing.T) {
	tests := []struct {
		rgb    [3]byte
		bucket int
	}{
		{[3]byte{0, 0, 0}, 0},
		// 31 -> 3: index 3*8 = 24 -> bucket 0
		{[3]byte{0, 31, 0}, 0},
		// g 32 -> 4: index 32 -> bucket 1
		{[3]byte{0, 32, 0}, 1},
		// r 8 -> 1: index 64 -> bucket 2
		{[3]byte{8, 0, 0}, 2},
		// white: 31*64+31*8+31 = 2263 -> bucket 70
		{[3]byte{255, 255, 255}, 70},
	}

	for _, tt := range tests {
		h := histogram(fill(1, 1, tt.rgb[0], tt.rgb[1], tt.rgb[2]))
		if h[tt.bucket] != 1 {
			t.Errorf("rgb %v landed outside bucket %d: %v", tt.rgb, tt.bucket, h)
		}
	}
	if ColorBuckets != 71 {
		t.Errorf("ColorBuckets = %d, want 71", ColorBuckets)
	}
}
