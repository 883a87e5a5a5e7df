package reference

import (
	"context"
	"io/fs"
	"path"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/imaging"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Loader builds a Set from manifests and images behind a Locator.
type Loader struct {
	loc         Locator
	thresholds  Thresholds
	advertisers []string
	concurrency int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConcurrency bounds concurrent image decodes per category.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a loader for the normal category plus advertisers, which
// are scanned in the order given.
func NewLoader(loc Locator, th Thresholds, advertisers []string, opts ...LoaderOption) *Loader {
	l := &Loader{
		loc:         loc,
		thresholds:  th,
		advertisers: advertisers,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads every category. Missing manifests and bad images only shrink the
// affected category; the only error is cancellation of ctx.
func (l *Loader) Load(ctx context.Context) (*Set, error) {
	ctx, span := trace.StartSpan(ctx, "reference.load")
	defer span.End()
	log := trace.Logger(ctx)

	set := &Set{Normal: l.category(ctx, NormalCategory)}
	for _, name := range l.advertisers {
		if name == NormalCategory {
			continue
		}
		if !ValidCategoryName(name) {
			log.Warn("invalid advertiser name skipped", "advertiser", name)
			continue
		}
		set.Ads = append(set.Ads, l.category(ctx, name))
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Cancelled, "reference load cancelled")
	}

	span.SetAttr("images", set.Size())
	span.End()
	log.Info("reference set loaded", "span", span, "categories", len(set.Ads)+1)
	return set, nil
}

func (l *Loader) category(ctx context.Context, name string) Category {
	log := trace.Logger(ctx).With("category", name)
	dir := CategoryPath(name)

	files, err := ReadManifest(ctx, l.loc, dir)
	if err != nil {
		log.Warn("manifest unavailable, category left empty", "error", err)
		return NewCategory(name, l.thresholds, nil)
	}

	slots := make([]*imaging.Canonical, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, file := range files {
		g.Go(func() error {
			img, err := l.image(gctx, path.Join(dir, file), file)
			if err != nil {
				log.Warn("reference image skipped", "file", file, "error", err)
				return nil
			}
			slots[i] = img
			return nil
		})
	}
	_ = g.Wait()

	images := make([]*imaging.Canonical, 0, len(slots))
	for _, img := range slots {
		if img != nil {
			images = append(images, img)
		}
	}
	log.Debug("category loaded", "listed", len(files), "loaded", len(images))
	return NewCategory(name, l.thresholds, images)
}

func (l *Loader) image(ctx context.Context, p, file string) (*imaging.Canonical, error) {
	if !fs.ValidPath(file) || file == "." {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "invalid file name %q", file)
	}
	rc, err := l.loc.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return imaging.Load(rc)
}
