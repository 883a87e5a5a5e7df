//go:build darwin

package screen

func newBackend() (backend, error) {
	_, path, err := lookPath("screencapture")
	if err != nil {
		return nil, err
	}
	// -x: no sound, -m: main display only
	return cmdBackend{path: path, args: func(out string) []string {
		return []string{"-x", "-t", "png", "-m", out}
	}}, nil
}
