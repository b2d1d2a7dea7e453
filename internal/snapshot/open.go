package snapshot

import (
	"context"
	"io"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/vango-dev/derive/internal/errors"
)

// Open returns the store selected by rawURL's scheme.
//
// Stores holding connections also implement io.Closer.
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.New(errors.CodeSnapshotScheme).
			WithDetail("Cannot parse " + rawURL).
			Wrap(err)
	}

	switch u.Scheme {
	case "file":
		dir := u.Path
		if u.Host != "" {
			// file://relative/dir
			dir = u.Host + u.Path
		}
		return NewFileStore(afero.NewOsFs(), dir), nil

	case "mem":
		return NewFileStore(afero.NewMemMapFs(), "/"+u.Host+u.Path), nil

	case "s3":
		if u.Host == "" {
			return nil, errors.New(errors.CodeSnapshotScheme).
				WithDetail("s3 URL needs a bucket: " + rawURL)
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.New(errors.CodeSnapshotIO).
				WithDetail("Failed to load AWS configuration").
				Wrap(err)
		}
		return NewS3Store(s3.NewFromConfig(cfg), u.Host, strings.TrimPrefix(u.Path, "/")), nil

	case "redis", "rediss":
		// prefix is ours; go-redis rejects query options it does not know.
		query := u.Query()
		var storeOpts []RedisOption
		if prefix := query.Get("prefix"); prefix != "" {
			storeOpts = append(storeOpts, WithPrefix(prefix))
		}
		query.Del("prefix")
		u.RawQuery = query.Encode()

		opts, err := backend.ParseURL(u.String())
		if err != nil {
			return nil, errors.New(errors.CodeSnapshotScheme).Wrap(err)
		}
		return NewRedisStore(backend.NewClient(opts), storeOpts...), nil
	}

	return nil, errors.New(errors.CodeSnapshotScheme).
		WithDetail("Unsupported scheme " + u.Scheme + " in " + rawURL)
}

// Close closes store if it holds connections.
func Close(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
