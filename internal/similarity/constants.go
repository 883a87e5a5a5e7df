// Package similarity implements the pixel, structural, and color-distribution
// metrics and the weighted aggregate score built from them.
package similarity

// Pixel metric constants
const (
	// Only every PixelSampleStride-th pixel is compared
	PixelSampleStride = 4

	// Brightness (r+g+b, 0-765) outside [BackgroundDark, BackgroundLight] marks a pixel as background-like
	BackgroundDark  = 100
	BackgroundLight = 600

	// Maximum channel-sum difference still counted as similar
	BackgroundTolerance = 150
	ForegroundTolerance = 80
)

// Structural metric constants
const (
	BlockSize = 8

	// Block mean-brightness difference below which two blocks match
	BlockTolerance = 0.3
)

// Color metric constants
const (
	// Bits dropped from each channel before indexing
	ColorShift = 3

	// Composite index is r*ColorRedWeight + g*ColorGreenWeight + b
	ColorRedWeight   = 64
	ColorGreenWeight = 8

	// Composite indices per histogram bucket
	ColorFold = 32

	// Buckets needed to hold every index the fold can produce: (31*64+31*8+31)/32 + 1
	ColorBuckets = (31*ColorRedWeight+31*ColorGreenWeight+31)/ColorFold + 1
)

// Default aggregate weights
const (
	DefaultPixelWeight      = 0.4
	DefaultStructuralWeight = 0.4
	DefaultColorWeight      = 0.2

	weightSumEpsilon = 1e-9
)
