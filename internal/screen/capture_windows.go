//go:build windows

package screen

func newBackend() (backend, error) {
	_, path, err := lookPath("ffmpeg")
	if err != nil {
		return nil, err
	}
	return cmdBackend{path: path, args: func(out string) []string {
		return []string{"-hide_banner", "-loglevel", "error", "-y", "-f", "gdigrab", "-i", "desktop", "-frames:v", "1", out}
	}}, nil
}
