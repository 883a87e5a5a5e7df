//go:build linux

package screen

func newBackend() (backend, error) {
	name, path, err := lookPath("gnome-screenshot", "scrot", "import")
	if err != nil {
		return nil, err
	}
	switch name {
	case "gnome-screenshot":
		return cmdBackend{path: path, args: func(out string) []string { return []string{"-f", out} }}, nil
	case "scrot":
		return cmdBackend{path: path, args: func(out string) []string { return []string{"-o", out} }}, nil
	default: // ImageMagick
		return cmdBackend{path: path, args: func(out string) []string { return []string{"-window", "root", out} }}, nil
	}
}
