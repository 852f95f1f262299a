package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mediagrab/api/internal/config"
)

// ProgressFunc receives a completion percentage in [0, 100].
type ProgressFunc func(percent int)

// StorageClient defines the interface for object storage operations
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// S3Storage implements StorageClient for any S3-compatible bucket
type S3Storage struct {
	s3Client   *s3.Client
	presigner  *s3.PresignClient
	bucketName string
}

// NewS3Storage creates a new S3-compatible storage client
func NewS3Storage(cfg *config.StorageConfig) (*S3Storage, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("storage configuration incomplete")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpoint,
				HostnameImmutable: cfg.UsePathStyle,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	presigner := s3.NewPresignClient(s3Client)

	return &S3Storage{
		s3Client:   s3Client,
		presigner:  presigner,
		bucketName: cfg.BucketName,
	}, nil
}

// Upload stores body under key. The payload is sent unsigned so the body is
// read exactly once, which keeps the progress callback monotonic.
func (c *S3Storage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucketName),
		Key:           aws.String(key),
		Body:          newProgressReader(body, size, onProgress),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	_, err := c.s3Client.PutObject(ctx, input, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return fmt.Errorf("failed to upload to storage: %w", err)
	}

	return nil
}

// Exists reports whether key is present in the bucket
func (c *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}

	return false, fmt.Errorf("failed to stat object: %w", err)
}

// Delete removes a file from storage
func (c *S3Storage) Delete(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}

	_, err := c.s3Client.DeleteObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}

	return nil
}

// GetSignedURL generates a presigned URL for temporary access
func (c *S3Storage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}

	presignedReq, err := c.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *S3Storage) IsConfigured() bool {
	return c.s3Client != nil && c.bucketName != ""
}

// progressReader reports how much of a known-size body has been consumed.
type progressReader struct {
	r          io.Reader
	size       int64
	read       int64
	last       int
	onProgress ProgressFunc
}

func newProgressReader(r io.Reader, size int64, onProgress ProgressFunc) io.Reader {
	if onProgress == nil || size <= 0 {
		return r
	}
	pr := &progressReader{r: r, size: size, last: -1, onProgress: onProgress}
	if s, ok := r.(io.Seeker); ok {
		return &seekingProgressReader{progressReader: pr, seeker: s}
	}
	return pr
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report()
	}
	return n, err
}

// seekingProgressReader lets the SDK rewind seekable bodies. Reported
// progress never moves backwards.
type seekingProgressReader struct {
	*progressReader
	seeker io.Seeker
}

func (p *seekingProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.seeker.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}

func (p *progressReader) report() {
	percent := Percent(p.read, p.size)
	if percent > p.last {
		p.last = percent
		p.onProgress(percent)
	}
}
