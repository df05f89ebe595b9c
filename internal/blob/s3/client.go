// Package s3blob archives scan snapshots to S3 or an S3-compatible store
// (MinIO, R2, iDrive e2) using AWS SDK v2.
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// defaultMaxAttempts bounds SDK retries so a slow archive cannot stall a
// scan's publish step for long.
const defaultMaxAttempts = 3

// ClientConfig locates the snapshot archive bucket.
type ClientConfig struct {
	// Endpoint is set for S3-compatible stores and left empty for AWS.
	// A value without a scheme gets one from UseSSL.
	Endpoint string
	Region   string
	Bucket   string

	// AccessKey and SecretKey select static credentials. When AccessKey is
	// empty the SDK default chain (env, profile, instance role) is used.
	AccessKey string
	SecretKey string

	UseSSL         bool
	ForcePathStyle bool
	// MaxAttempts caps SDK retries per request. Zero uses 3.
	MaxAttempts int
}

// apply sets the per-client S3 options for the archive bucket.
func (cfg ClientConfig) apply(o *s3.Options) {
	if cfg.Endpoint != "" {
		o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
	}
	o.UsePathStyle = cfg.ForcePathStyle
	o.RetryMaxAttempts = cfg.MaxAttempts
	if o.RetryMaxAttempts <= 0 {
		o.RetryMaxAttempts = defaultMaxAttempts
	}
	o.AppID = "crossarb"
}

// Client holds the SDK client bound to the archive bucket.
type Client struct {
	api    *s3.Client
	bucket string
}

// New builds a Client. It does not contact the store; Health does.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	return &Client{
		api:    s3.NewFromConfig(awsCfg, cfg.apply),
		bucket: cfg.Bucket,
	}, nil
}

// Health checks that the bucket exists and that the snapshot prefix can be
// listed with these credentials.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	_, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(snapshotPrefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("s3blob: list %s/%s: %w", c.bucket, snapshotPrefix, err)
	}
	return nil
}

// normaliseEndpoint prepends a scheme chosen by useSSL when endpoint has
// none. "host:port" is treated as schemeless.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
