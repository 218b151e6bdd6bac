package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jackzampolin/synopsis/internal/book"
)

// S3Config configures object storage output.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for S3-compatible stores; implies path-style
	Prefix          string // Key prefix; objects land at <prefix>/<book-id>/<file>
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the same files FileSink writes.
type S3Sink struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink with static credentials.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	region := strings.TrimSpace(cfg.Region)
	if bucket == "" || region == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket and region are required")
	}

	opts := s3.Options{Region: region}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	if endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}

	return &S3Sink{
		client: s3.New(opts),
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Key returns the object key for a file of book b.
func (s *S3Sink) Key(b *book.Book, name string) string {
	return path.Join(s.prefix, b.ID, name)
}

func (s *S3Sink) PersistChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	return s.put(ctx, s.Key(b, ChapterFileName(r.Chapter)), []byte(FormatChapter(r)), "text/plain; charset=utf-8")
}

func (s *S3Sink) PersistContext(ctx context.Context, b *book.Book, rc book.RollingContext) error {
	data, err := FormatContext(rc)
	if err != nil {
		return err
	}
	return s.put(ctx, s.Key(b, ContextFileName), data, "application/json")
}

func (s *S3Sink) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

var _ Sink = (*S3Sink)(nil)
