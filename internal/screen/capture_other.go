//go:build !linux && !darwin && !windows

package screen

import apperrors "github.com/GriffinCanCode/adscan/internal/errors"

func newBackend() (backend, error) {
	return nil, apperrors.New(apperrors.Unavailable, "screen capture is not supported on this platform")
}
