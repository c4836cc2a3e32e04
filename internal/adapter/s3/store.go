// Package s3 implements domain.BlobStore on an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// Option configures a Store.
type Option func(c *aws.Config)

// OptRegion sets the AWS region.
func OptRegion(region string) Option {
	return func(c *aws.Config) {
		c.Region = aws.String(region)
	}
}

// OptEndpoint points the client at an S3-compatible endpoint (MinIO, a local
// fake) and switches to path-style addressing.
func OptEndpoint(endpoint string) Option {
	return func(c *aws.Config) {
		if endpoint == "" {
			return
		}
		c.Endpoint = aws.String(endpoint)
		c.S3ForcePathStyle = aws.Bool(true)
	}
}

// OptStaticCredentials uses fixed credentials instead of the default chain.
func OptStaticCredentials(id, secret string) Option {
	return func(c *aws.Config) {
		c.Credentials = credentials.NewStaticCredentials(id, secret, "")
	}
}

// Store is a domain.BlobStore backed by one S3 bucket.
type Store struct {
	bucket string
	s3     *s3.S3
}

// NewSession builds an AWS session with the options applied. Stores for
// several buckets can share one session.
func NewSession(opts ...Option) (*session.Session, error) {
	cfg := aws.NewConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return sess, nil
}

// NewStore returns a Store for bucket.
func NewStore(sess *session.Session, bucket string) *Store {
	return &Store{bucket: bucket, s3: s3.New(sess)}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// List returns every object under prefix, with its last-modified time as the
// creation time.
func (s *Store) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			out = append(out, domain.BlobInfo{
				Name:    aws.StringValue(obj.Key),
				Created: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", s.bucket, prefix)
	}
	return out, nil
}

// Read returns the object's content. A missing object yields an error
// matching domain.ErrBlobNotFound.
func (s *Store) Read(ctx context.Context, name string) (string, error) {
	res, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return "", errors.Wrapf(domain.ErrBlobNotFound, "s3://%s/%s", s.bucket, name)
		}
		return "", errors.Wrapf(err, "fetching s3://%s/%s", s.bucket, name)
	}
	defer res.Body.Close()

	var b strings.Builder
	if _, err := io.Copy(&b, res.Body); err != nil {
		return "", errors.Wrapf(err, "reading s3://%s/%s", s.bucket, name)
	}
	return b.String(), nil
}

// Write stores content under name, replacing any existing object.
func (s *Store) Write(ctx context.Context, name, content, contentType string) error {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader([]byte(content)),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "writing s3://%s/%s", s.bucket, name)
	}
	return nil
}

// Exists reports whether an object named name exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking s3://%s/%s", s.bucket, name)
}

func isNotFound(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) {
		return rf.StatusCode() == http.StatusNotFound
	}
	var ae awserr.Error
	if errors.As(err, &ae) {
		return ae.Code() == s3.ErrCodeNoSuchKey || ae.Code() == "NotFound"
	}
	return false
}
