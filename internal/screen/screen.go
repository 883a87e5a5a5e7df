// Package screen captures the primary display with the platform's screenshot
// tool and exposes it as a never-ending video for the sampler.
package screen

import (
	"bytes"
	"context"
	"crypto/md5"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

// backend writes one screenshot to out.
type backend interface {
	capture(ctx context.Context, out string) error
}

// cmdBackend runs an external screenshot tool.
type cmdBackend struct {
	path string
	args func(out string) []string
}

func (b cmdBackend) capture(ctx context.Context, out string) error {
	cmd := exec.CommandContext(ctx, b.path, b.args(out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "screenshot cancelled")
		}
		return apperrors.Wrap(err, apperrors.Unavailable, "screenshot failed").
			WithMetadata("tool", filepath.Base(b.path)).
			WithMetadata("stderr", lastLine(stderr.String()))
	}
	return nil
}

// Source is a sampler.Video over the live screen. It never ends and is never
// paused; sampling stops on a match, the deadline or cancellation.
type Source struct {
	backend backend
	tempDir string

	mu       sync.Mutex
	lastHash [16]byte
	last     image.Image
}

// New creates a source using the platform screenshot tool.
func New() (*Source, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return newSource(b)
}

func newSource(b backend) (*Source, error) {
	tmpDir, err := os.MkdirTemp("", "adscan-screen-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "create screenshot dir")
	}
	return &Source{backend: b, tempDir: tmpDir}, nil
}

// Frame captures the screen. An unchanged capture returns the previously
// decoded image without decoding again.
func (s *Source) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := filepath.Join(s.tempDir, "screenshot.png")
	if err := s.backend.capture(ctx, out); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "read screenshot")
	}
	_ = os.Remove(out)

	hash := md5.Sum(data)
	if s.last != nil && hash == s.lastHash {
		return s.last, nil
	}
	img, _, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	s.lastHash, s.last = hash, img
	return img, nil
}

// Ended implements sampler.Video.
func (s *Source) Ended() bool { return false }

// Paused implements sampler.Video.
func (s *Source) Paused() bool { return false }

// Close removes the temp directory.
func (s *Source) Close() error {
	return os.RemoveAll(s.tempDir)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func lookPath(names ...string) (string, string, error) {
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return n, p, nil
		}
	}
	return "", "", apperrors.Newf(apperrors.Unavailable, "no screenshot tool found (tried %v)", names)
}
