// Package sampler classifies successive frames of a playing video until one
// matches, the video stops, or a deadline passes.
package sampler

import (
	"context"
	"image"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Video is a playing media source.
type Video interface {
	// Frame captures the frame at the current playback position.
	Frame(ctx context.Context) (image.Image, error)
	Ended() bool
	Paused() bool
}

// ClassifyFunc classifies one frame. It should return promptly once ctx is
// done.
type ClassifyFunc func(ctx context.Context, frame image.Image) classifier.Result

// Config holds sampling timings.
type Config struct {
	Interval time.Duration
	Deadline time.Duration
	// SkipDistance, when >= 0, skips classifying a frame whose perception hash
	// is within this Hamming distance of the last classified frame.
	SkipDistance int
}

// DefaultConfig samples every 2s for at most 5s with skipping disabled.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Deadline: DefaultDeadline, SkipDistance: SkipDisabled}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}

// Sampler runs sampling sessions. It holds no per-session state and may run
// several sessions concurrently.
type Sampler struct {
	cfg      Config
	classify ClassifyFunc
	clock    clockwork.Clock
	hooks    Hooks
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock injects the time source.
func WithClock(c clockwork.Clock) Option {
	return func(s *Sampler) { s.clock = c }
}

// New creates a sampler.
func New(cfg Config, classify ClassifyFunc, opts ...Option) *Sampler {
	s := &Sampler{cfg: cfg.withDefaults(), classify: classify, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithHooks sets session observers.
func (s *Sampler) WithHooks(h Hooks) *Sampler {
	s.hooks = h
	return s
}

// session is the state of one Run.
type session struct {
	*Sampler
	id       string
	state    State
	attempts int
	lastHash *goimagehash.ImageHash
}

// Run samples v until a terminal state and returns the outcome. The first
// frame is taken immediately, then one per interval; at most one
// classification is in flight and ticks arriving meanwhile are dropped. On
// every exit path the timers are stopped and any in-flight classification is
// cancelled and awaited.
func (s *Sampler) Run(ctx context.Context, v Video) Outcome {
	ss := &session{Sampler: s, id: uuid.NewString()}
	ctx = trace.WithContext(ctx, trace.NewChild(traceOf(ctx)))
	log := trace.Logger(ctx).With("session", ss.id)

	ss.transition(Sampling)
	deadline := s.clock.NewTimer(s.cfg.Deadline)
	defer deadline.Stop()
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	done := make(chan classifier.Result, 1)
	var cancelAttempt context.CancelFunc
	inFlight := false

	start := func() {
		ss.attempts++
		var actx context.Context
		actx, cancelAttempt = context.WithCancel(ctx)
		inFlight = true
		go func(n int) { done <- ss.attempt(actx, v, n) }(ss.attempts)
	}
	stop := func(state State, r classifier.Result) Outcome {
		if inFlight {
			cancelAttempt()
			<-done
		}
		if cancelAttempt != nil {
			cancelAttempt()
		}
		ss.transition(state)
		log.Debug("sampling stopped", "state", state, "attempts", ss.attempts, "result", r)
		return Outcome{Session: ss.id, State: state, Result: r, Attempts: ss.attempts}
	}

	start()
	for {
		select {
		case <-ctx.Done():
			return stop(StoppedCancelled, classifier.NotAd())

		case <-deadline.Chan():
			return stop(StoppedTimeout, classifier.NotAd())

		case <-ticker.Chan():
			if v.Ended() || v.Paused() {
				return stop(StoppedEnded, classifier.NotAd())
			}
			if inFlight {
				log.Debug("tick dropped, classification in flight", "attempt", ss.attempts)
				continue
			}
			start()

		case r := <-done:
			inFlight = false
			cancelAttempt()
			if ctx.Err() != nil {
				return stop(StoppedCancelled, classifier.NotAd())
			}
			if s.hooks.OnAttempt != nil {
				s.hooks.OnAttempt(ss.attempts, r)
			}
			if r.IsAd {
				return stop(StoppedMatched, r)
			}
		}
	}
}

// attempt captures and classifies one frame. Capture errors yield not-ad.
func (ss *session) attempt(ctx context.Context, v Video, n int) classifier.Result {
	log := trace.Logger(ctx).With("session", ss.id, "attempt", n)

	frame, err := v.Frame(ctx)
	if err != nil {
		log.Debug("frame capture failed", "error", err)
		return classifier.NotAd()
	}
	if ss.skip(frame) {
		log.Debug("frame unchanged, classification skipped")
		return classifier.NotAd()
	}
	return ss.classify(ctx, frame)
}

// skip reports whether frame is perceptually the same as the last classified
// frame. Attempts never overlap, so lastHash needs no lock.
func (ss *session) skip(frame image.Image) bool {
	if ss.cfg.SkipDistance < 0 {
		return false
	}
	hash, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return false
	}
	if ss.lastHash != nil {
		if dist, err := ss.lastHash.Distance(hash); err == nil && dist <= ss.cfg.SkipDistance {
			return true
		}
	}
	ss.lastHash = hash
	return false
}

func (ss *session) transition(to State) {
	from := ss.state
	ss.state = to
	if ss.hooks.OnTransition != nil {
		ss.hooks.OnTransition(from, to)
	}
}

func traceOf(ctx context.Context) trace.Context {
	tc, _ := trace.FromContext(ctx)
	return tc
}
