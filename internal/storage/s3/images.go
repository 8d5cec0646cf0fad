// Package s3 hosts vendor and menu images in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xenking/dormdash/internal/domain/vendor"
)

// Config describes the bucket. Endpoint is set for MinIO, R2 and other
// S3-compatible services and switches the client to path-style addressing.
type Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region" default:"us-east-1"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PublicURL is the prefix of returned object URLs. Defaults to the
	// virtual-hosted AWS URL of the bucket.
	PublicURL string `yaml:"public_url"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// putObjectAPI is the subset of the S3 client used by ImageStore.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ vendor.ImageStore = (*ImageStore)(nil)

// ImageStore implements vendor.ImageStore.
type ImageStore struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// NewImageStore builds an S3 client from cfg.
func NewImageStore(ctx context.Context, cfg Config) (*ImageStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3: bucket is not configured")
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newImageStore(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

func newImageStore(client putObjectAPI, cfg Config) *ImageStore {
	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		switch {
		case cfg.Endpoint != "":
			baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &ImageStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}
}

// Put uploads u under key and returns its public URL.
func (s *ImageStore) Put(ctx context.Context, key string, u vendor.Upload) (string, error) {
	key = strings.TrimLeft(key, "/")
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        u.Body,
		ContentType: aws.String(u.ContentType),
	}
	if u.Size > 0 {
		in.ContentLength = aws.Int64(u.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *ImageStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}
