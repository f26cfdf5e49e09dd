package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Resolver turns stored object keys into URLs clients can fetch. Attachments
// land in the bucket through a separate pipeline; chat only ever reads.
type Resolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// Client wraps a MinIO/S3 client and signs short-lived GET URLs. When the
// bucket sits behind a gateway, publicEndpoint rewrites signed URLs to the
// host clients can actually reach.
type Client struct {
	bucket string
	ttl    time.Duration
	public *url.URL
	client *minio.Client
}

func NewClient(endpoint, publicEndpoint string, useSSL bool, accessKey, secretKey, bucket string, ttl time.Duration) (*Client, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	var public *url.URL
	if trimmed := strings.TrimSpace(publicEndpoint); trimmed != "" && trimmed != cleanEndpoint {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("s3: invalid public endpoint %q", trimmed)
		}
		public = parsed
	}
	return &Client{
		bucket: bucket,
		ttl:    ttl,
		public: public,
		client: minioClient,
	}, nil
}

func (c *Client) ResolveURL(ctx context.Context, key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	signed, err := c.client.PresignedGetObject(ctx, c.bucket, key, c.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign object: %w", err)
	}
	if c.public != nil {
		signed.Scheme = c.public.Scheme
		signed.Host = c.public.Host
	}
	return signed.String(), nil
}

// NoopResolver fails fast when object storage is not configured.
type NoopResolver struct{}

func (NoopResolver) ResolveURL(context.Context, string) (string, error) {
	return "", errors.New("s3 resolver is not configured")
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ Resolver = (*Client)(nil)
var _ Resolver = NoopResolver{}
