package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store stores snapshots as S3 objects.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := snapshot.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "derive/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates an S3Store writing to bucket under prefix.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(key string) string {
	return s.prefix + key + fileExt
}

// Save uploads the snapshot.
func (s *S3Store) Save(ctx context.Context, key string, snap *Snapshot) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"scenario": snap.Scenario,
			"taken-at": snap.TakenAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return ioError("save", key, err)
	}
	return nil
}

// Load downloads the snapshot.
func (s *S3Store) Load(ctx context.Context, key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if stderrors.As(err, &missing) {
			return nil, notFound(key)
		}
		return nil, ioError("load", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ioError("load", key, err)
	}
	return decode(key, data)
}

// Delete removes the snapshot object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return ioError("delete", key, err)
	}
	return nil
}

// List returns the keys under the store's prefix.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioError("list", s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, fileExt) {
				continue
			}
			keys = append(keys, strings.TrimSuffix(name, fileExt))
		}
	}
	return keys, nil
}
