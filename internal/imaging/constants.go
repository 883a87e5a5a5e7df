package imaging

// Canonical geometry
const (
	// Width and height of every canonical buffer
	Size = 200

	// RGBA
	BytesPerPixel = 4
)
