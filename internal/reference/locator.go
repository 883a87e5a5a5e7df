package reference

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/fetch"
)

// Locator resolves a slash-separated path below the reference root to a byte
// stream.
type Locator interface {
	Open(ctx context.Context, p string) (io.ReadCloser, error)
}

// FSLocator reads from an fs.FS.
type FSLocator struct {
	FS fs.FS
}

// DirLocator reads from a local directory.
func DirLocator(root string) FSLocator {
	return FSLocator{FS: os.DirFS(root)}
}

// Open implements Locator.
func (l FSLocator) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Cancelled, "open cancelled")
	}
	if !fs.ValidPath(p) {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "invalid reference path %q", p)
	}
	f, err := l.FS.Open(p)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(err, apperrors.NotFound, "reference not found").WithMetadata("path", p)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "open reference").WithMetadata("path", p)
	}
	return f, nil
}

// Opener fetches a URL. fetch.Client implements it.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPLocator reads from a base URL.
type HTTPLocator struct {
	base   *url.URL
	client Opener
}

// NewHTTPLocator parses base. A nil client gets a default fetch.Client.
func NewHTTPLocator(base string, client Opener) (*HTTPLocator, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperrors.Newf(apperrors.ConfigInvalid, "invalid reference base url %q", base)
	}
	if client == nil {
		client = fetch.New()
	}
	return &HTTPLocator{base: u, client: client}, nil
}

// Open implements Locator.
func (l *HTTPLocator) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if !fs.ValidPath(p) {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "invalid reference path %q", p)
	}
	return l.client.Open(ctx, l.base.JoinPath(p).String())
}

// S3Config addresses a bucket on an S3-compatible store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Locator reads objects from a bucket.
type S3Locator struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Locator connects to the store. No request is made until Open.
func NewS3Locator(cfg S3Config) (*S3Locator, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperrors.New(apperrors.ConfigInvalid, "s3 endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "create s3 client")
	}
	return &S3Locator{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Open implements Locator. The object is stat'ed first so a missing key fails
// here rather than on first Read.
func (l *S3Locator) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if !fs.ValidPath(p) {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "invalid reference path %q", p)
	}
	key := p
	if l.prefix != "" {
		key = path.Join(l.prefix, p)
	}

	obj, err := l.client.GetObject(ctx, l.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error(err, key)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s3Error(err, key)
	}
	return obj, nil
}

func s3Error(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return apperrors.Wrap(err, apperrors.NotFound, "object not found").WithMetadata("key", key)
	case "AccessDenied":
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "object access denied").WithMetadata("key", key)
	}
	return apperrors.Wrap(err, apperrors.Unavailable, "get object").WithMetadata("key", key)
}
