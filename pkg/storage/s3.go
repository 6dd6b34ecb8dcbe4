// Package storage keeps uploaded image blobs in an S3 bucket under a fixed folder prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultPrefix is the bucket folder every blob lives under.
const DefaultPrefix = "image_upload"

// API is the subset of *s3.Client used here.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Store struct {
	api      API
	uploader Uploader
	bucket   string
	prefix   string
}

// NewS3Store wires a store around an S3 client. The transfer manager streams bodies of
// unknown length, so multipart request files can be passed straight through.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return newS3Store(client, manager.NewUploader(client), bucket, prefix)
}

func newS3Store(api API, uploader Uploader, bucket, prefix string) *S3Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Store{api: api, uploader: uploader, bucket: bucket, prefix: prefix}
}

// Key composes the object key for a sanitized filename.
func (s *S3Store) Key(filename string) string {
	return path.Join(s.prefix, filename)
}

func (s *S3Store) Bucket() string { return s.bucket }

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// Size asks the bucket for the stored byte length instead of trusting the client.
func (s *S3Store) Size(ctx context.Context, key string) (int64, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Delete removes the object. S3 reports success for keys that are already gone.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
