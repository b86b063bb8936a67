package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // optional, for S3 compatible providers
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

type S3Storage struct {
	Bucket   string
	Region   string
	endpoint string
	uploader *manager.Uploader
}

func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Storage{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 }),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, file io.Reader, filename string, contentType string) (Object, error) {
	key := "media/" + objectKey(filename)
	body := &countingReader{r: file}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload to s3: %w", err)
	}

	location := result.Location
	if location == "" {
		location = s.URL(key)
	}
	return Object{Key: key, URL: location, Size: body.n}, nil
}

// URL builds the public object URL for key. Keys are generated, so they
// never need escaping.
func (s *S3Storage) URL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, key)
}
