package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ClientConfig holds configuration for S3Source
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	UsePathStyle    bool
}

// S3API is the subset of the S3 client used by S3Source
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves the objects under a bucket prefix (S3, MinIO, RustFS).
// Document names have the form s3://bucket/key.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Client creates an S3 client for AWS or an S3-compatible endpoint
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Source connects to the configured bucket
func NewS3Source(ctx context.Context, cfg S3ClientConfig) (*S3Source, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3SourceWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SourceWithClient wraps an existing client
func NewS3SourceWithClient(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.prefix }

// List returns every object under the prefix in key order. Directory
// placeholder keys are skipped.
func (s *S3Source) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var names []string
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			names = append(names, s.nameFor(key))
		}
	}
	return names, nil
}

// Open fetches an object by document name or bare key.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}
	return out.Body, nil
}

func (s *S3Source) nameFor(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *S3Source) keyFor(name string) string {
	return strings.TrimPrefix(name, "s3://"+s.bucket+"/")
}

// EnsureBucket creates the bucket if it doesn't exist
func EnsureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
