// Package video plays a local video file on a wall clock and captures the
// frame at the current position with ffmpeg, for offline sampling.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
)

// File is a sampler.Video backed by a file on disk. Playback starts at Open
// and advances with the clock.
type File struct {
	path     string
	ffmpeg   string
	duration time.Duration
	clock    clockwork.Clock
	started  time.Time
	paused   atomic.Bool
}

// Option configures a File.
type Option func(*File)

// WithClock injects the playback clock.
func WithClock(c clockwork.Clock) Option {
	return func(f *File) { f.clock = c }
}

// Open probes path and starts playback.
func Open(ctx context.Context, path string, opts ...Option) (*File, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "ffmpeg not found in PATH")
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "ffprobe not found in PATH")
	}

	out, err := exec.CommandContext(ctx, ffprobePath, probeArgs(path)...).Output()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "ffprobe failed").WithMetadata("path", path)
	}
	dur, err := parseDuration(out)
	if err != nil {
		return nil, err
	}

	f := &File{path: path, ffmpeg: ffmpegPath, duration: dur, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(f)
	}
	f.started = f.clock.Now()
	return f, nil
}

// Duration is the probed length.
func (f *File) Duration() time.Duration { return f.duration }

// Position is the current playback offset.
func (f *File) Position() time.Duration {
	return min(f.clock.Since(f.started), f.duration)
}

// Ended reports whether playback passed the end of the file.
func (f *File) Ended() bool {
	return f.clock.Since(f.started) >= f.duration
}

// Paused reports whether Pause was called.
func (f *File) Paused() bool { return f.paused.Load() }

// Pause marks playback paused; a sampler stops at its next tick.
func (f *File) Pause() { f.paused.Store(true) }

// Frame decodes the frame at the current position.
func (f *File) Frame(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpeg, frameArgs(f.path, f.Position())...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "frame capture cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.Internal, "ffmpeg frame capture").WithMetadata("stderr", lastLine(stderr.String()))
	}
	img, _, err := imaging.Decode(&stdout)
	return img, err
}

func probeArgs(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_format", path}
}

// frameArgs seeks before -i so ffmpeg jumps to the nearest keyframe instead of
// decoding from the start.
func frameArgs(path string, at time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseDuration(out []byte) (time.Duration, error) {
	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, apperrors.Wrap(err, apperrors.InvalidArgument, "parse ffprobe output")
	}
	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || secs <= 0 {
		return 0, apperrors.Newf(apperrors.InvalidArgument, "no usable duration %q", probe.Format.Duration)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	return s[strings.LastIndexByte(s, '\n')+1:]
}
