// Package detector owns the reference data of one classification service:
// it loads references once, on first use or on Initialize, and answers
// classify requests with a verdict that is always defined.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	"github.com/jonboulle/clockwork"

	"github.com/GriffinCanCode/adscan/internal/cache"
	"github.com/GriffinCanCode/adscan/internal/classifier"
	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
	"github.com/GriffinCanCode/adscan/internal/reference"
	"github.com/GriffinCanCode/adscan/internal/sampler"
	"github.com/GriffinCanCode/adscan/internal/similarity"
	"github.com/GriffinCanCode/adscan/internal/syncx"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Loader produces the reference set. reference.Loader implements it.
type Loader interface {
	Load(ctx context.Context) (*reference.Set, error)
}

// Config holds the fixed parameters of a detector.
type Config struct {
	Weights similarity.Weights
	Sampler sampler.Config
}

// DefaultConfig uses the default weights and sampling timings.
func DefaultConfig() Config {
	return Config{Weights: similarity.DefaultWeights(), Sampler: sampler.DefaultConfig()}
}

// loaded is the ready state: an immutable set, the cache namespace derived
// from it, and the load error if the set is a degraded empty one.
type loaded struct {
	set         *reference.Set
	fingerprint string
	err         error
}

// Detector classifies candidates against lazily loaded references. It is safe
// for concurrent use.
type Detector struct {
	cfg    Config
	loader Loader
	scorer similarity.Scorer
	cache  cache.Cache
	clock  clockwork.Clock

	state  *syncx.Guard[*loaded]
	flight syncx.Flight[*loaded]
}

// Option configures a Detector.
type Option func(*Detector)

// WithCache sets the result cache.
func WithCache(c cache.Cache) Option {
	return func(d *Detector) { d.cache = c }
}

// WithClock sets the clock used by video sampling.
func WithClock(c clockwork.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// New creates an uninitialized detector. Invalid weights are rejected.
func New(cfg Config, loader Loader, opts ...Option) (*Detector, error) {
	scorer, err := similarity.NewScorer(cfg.Weights)
	if err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:    cfg,
		loader: loader,
		scorer: scorer,
		cache:  cache.Nop{},
		clock:  clockwork.NewRealClock(),
		state:  syncx.NewGuard[*loaded](nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Initialize loads the references once. Concurrent callers share one load.
// A failed load leaves the detector ready with an empty set and is reported
// here; classification still succeeds. The load itself is not cancelled when
// ctx is, because other callers may be waiting on it.
func (d *Detector) Initialize(ctx context.Context) error {
	_, err := d.ensure(ctx)
	return err
}

// Ready reports whether initialization has completed.
func (d *Detector) Ready() bool {
	return d.state.Get() != nil
}

// References summarizes the loaded set, or nil before initialization.
func (d *Detector) References() []reference.Info {
	if st := d.state.Get(); st != nil {
		return st.set.Summary()
	}
	return nil
}

func (d *Detector) ensure(ctx context.Context) (*loaded, error) {
	if st := d.state.Get(); st != nil {
		return st, st.err
	}
	st, _, err := d.flight.Do(ctx, "init", func() (*loaded, error) {
		if st := d.state.Get(); st != nil {
			return st, nil
		}
		lctx := context.WithoutCancel(ctx)
		log := trace.Logger(lctx)

		set, err := d.loader.Load(lctx)
		if err != nil {
			log.Error("reference load failed, detector degraded to empty set", "error", err)
			set = reference.Empty()
		}
		st := &loaded{set: set, fingerprint: d.fingerprint(set), err: err}
		d.state.Set(st)
		log.Info("detector ready", "references", set.Size(), "categories", len(set.Ads)+1)
		return st, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Cancelled, "waiting for detector initialization")
	}
	return st, st.err
}

// fingerprint identifies a reference set and weights for cache keys.
func (d *Detector) fingerprint(set *reference.Set) string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v|", d.scorer.Weights())
	for _, c := range append([]reference.Category{set.Normal}, set.Ads...) {
		fmt.Fprintf(h, "%s:%v:", c.Name, c.Threshold)
		for _, img := range c.Images {
			h.Write([]byte(cache.Key(img)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Classify canonicalizes img and classifies it. It never fails: invalid
// input, missing references and cancellation all yield not-ad.
func (d *Detector) Classify(ctx context.Context, img image.Image) classifier.Result {
	c, err := imaging.Canonicalize(img)
	if err != nil {
		trace.Logger(ctx).Debug("candidate rejected", "error", err)
		return classifier.NotAd()
	}
	return d.ClassifyCanonical(ctx, c)
}

// ClassifyBytes decodes and classifies an encoded image. The error is
// InvalidImage for undecodable input and nil otherwise.
func (d *Detector) ClassifyBytes(ctx context.Context, data []byte) (classifier.Result, error) {
	c, err := imaging.LoadBytes(data)
	if err != nil {
		return classifier.NotAd(), err
	}
	return d.ClassifyCanonical(ctx, c), nil
}

// ClassifyCanonical classifies an already canonical image.
func (d *Detector) ClassifyCanonical(ctx context.Context, c *imaging.Canonical) classifier.Result {
	st, err := d.ensure(ctx)
	if st == nil {
		trace.Logger(ctx).Debug("classification skipped", "error", err)
		return classifier.NotAd()
	}

	key := st.fingerprint + ":" + cache.Key(c)
	if r, ok := d.cache.Get(ctx, key); ok {
		return r
	}
	r := classifier.ClassifyContext(ctx, c, st.set, d.scorer)
	if ctx.Err() == nil {
		d.cache.Put(ctx, key, r)
	}
	return r
}

// Explain reports per-category maxima for an encoded image.
func (d *Detector) Explain(ctx context.Context, data []byte) (classifier.Report, error) {
	c, err := imaging.LoadBytes(data)
	if err != nil {
		return classifier.Report{Result: classifier.NotAd()}, err
	}
	st, _ := d.ensure(ctx)
	if st == nil {
		return classifier.Report{Result: classifier.NotAd()}, nil
	}
	return classifier.Explain(ctx, c, st.set, d.scorer), nil
}

// ClassifyVideo samples v until a frame matches, the video stops, the
// sampling deadline passes or ctx ends. References are loaded before the
// deadline starts.
func (d *Detector) ClassifyVideo(ctx context.Context, v sampler.Video, hooks sampler.Hooks) sampler.Outcome {
	_, _ = d.ensure(ctx)
	s := sampler.New(d.cfg.Sampler, d.Classify, sampler.WithClock(d.clock)).WithHooks(hooks)
	return s.Run(ctx, v)
}
