package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type objectPutter interface {
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// S3Sink writes one JSON object per turn to an S3-compatible store, keyed by
// day and session so the trail is browsable without an index.
type S3Sink struct {
	putter objectPutter
	bucket string
	prefix string
}

func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	mc, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if cfg.AutoCreateBucket {
		exists, err := mc.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check audit bucket: %w", err)
		}
		if !exists {
			if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: strings.TrimSpace(cfg.Region)}); err != nil {
				return nil, fmt.Errorf("create audit bucket: %w", err)
			}
		}
	}

	return &S3Sink{
		putter: minioPutter{client: mc},
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// NewS3SinkWithPutter wires a custom putter, used in tests.
func NewS3SinkWithPutter(bucket, prefix string, putter objectPutter) (*S3Sink, error) {
	if putter == nil {
		return nil, fmt.Errorf("putter is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &S3Sink{putter: putter, bucket: strings.TrimSpace(bucket), prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Sink) Record(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	key := path.Join(
		s.prefix,
		entry.Time.UTC().Format("2006/01/02"),
		fmt.Sprintf("%s-%d.json", entry.SessionID, entry.Time.UTC().UnixNano()),
	)
	if err := s.putter.Put(ctx, s.bucket, key, body); err != nil {
		return fmt.Errorf("put audit entry %q: %w", key, err)
	}
	return nil
}

func (s *S3Sink) Close() error {
	return nil
}

type minioPutter struct {
	client *minio.Client
}

func (p minioPutter) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := p.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
