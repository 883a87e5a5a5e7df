package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/adscan/internal/cache"
	"github.com/GriffinCanCode/adscan/internal/config"
	"github.com/GriffinCanCode/adscan/internal/detector"
	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/fetch"
	"github.com/GriffinCanCode/adscan/internal/reference"
	"github.com/GriffinCanCode/adscan/internal/sampler"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Manager owns the detector, the shared fetch client, the cache backend and
// the clock every timer in the process runs on.
type Manager struct {
	cfg      *config.Config
	Detector *detector.Detector
	Fetcher  *fetch.Client
	Clock    clockwork.Clock

	redis *redis.Client
	wg    sync.WaitGroup
}

// New wires a detector for cfg. References are not loaded until Start or the
// first classification. An unreachable Redis degrades to the in-memory cache.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	m := &Manager{cfg: cfg, Fetcher: fetch.New(), Clock: clockwork.NewRealClock()}

	loc, err := NewLocator(cfg, m.Fetcher)
	if err != nil {
		return nil, err
	}
	th, err := reference.NewThresholds(cfg.DefaultThreshold, cfg.CategoryThresholds())
	if err != nil {
		return nil, err
	}
	loader := reference.NewLoader(loc, th, cfg.Advertisers, reference.WithConcurrency(cfg.LoadConcurrency))

	det, err := detector.New(detector.Config{
		Weights: cfg.Weights,
		Sampler: sampler.Config{
			Interval:     cfg.SampleInterval,
			Deadline:     cfg.SampleDeadline,
			SkipDistance: cfg.SampleSkipDistance,
		},
	}, loader, detector.WithCache(m.newCache(ctx)), detector.WithClock(m.Clock))
	if err != nil {
		return nil, err
	}
	m.Detector = det
	return m, nil
}

// NewLocator returns the reference locator selected by cfg.ReferenceSource.
func NewLocator(cfg *config.Config, client reference.Opener) (reference.Locator, error) {
	switch cfg.ReferenceSource {
	case config.SourceDir, "":
		return reference.DirLocator(cfg.ReferenceRoot), nil
	case config.SourceHTTP:
		loc, err := reference.NewHTTPLocator(cfg.ReferenceRoot, client)
		if err != nil {
			return nil, err
		}
		return loc, nil
	case config.SourceS3:
		loc, err := reference.NewS3Locator(reference.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.ReferenceRoot,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return loc, nil
	default:
		return nil, apperrors.Newf(apperrors.ConfigInvalid, "unknown reference source %q", cfg.ReferenceSource)
	}
}

func (m *Manager) newCache(ctx context.Context) cache.Cache {
	if m.cfg.RedisURL != "" {
		dctx, cancel := context.WithTimeout(ctx, RedisDialTimeout)
		defer cancel()
		rdb, err := cache.DialRedis(dctx, m.cfg.RedisURL)
		if err == nil {
			m.redis = rdb
			return cache.NewRedis(rdb, CacheNamespace, m.cfg.CacheTTL)
		}
		slog.Warn("redis unavailable, using in-memory cache", "error", err)
	}
	if m.cfg.CacheSize <= 0 {
		return cache.Nop{}
	}
	return cache.NewMemory(m.cfg.CacheSize)
}

// Start loads references in the background. onReady runs once loading has
// finished, successfully or not.
func (m *Manager) Start(ctx context.Context, onReady func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, span := trace.StartSpan(ctx, "detector.initialize")
		defer span.End()

		log := trace.Logger(ctx)
		if err := m.Detector.Initialize(ctx); err != nil {
			log.Error("reference load failed, classifying everything as not-ad", "error", err)
		} else {
			log.Info("references loaded", "categories", len(m.Detector.References()))
		}
		if onReady != nil {
			onReady()
		}
	}()
}

// Stop waits for background loading and releases the cache connection.
func (m *Manager) Stop() {
	m.wg.Wait()
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			slog.Warn("redis close error", "error", err)
		}
	}
}
