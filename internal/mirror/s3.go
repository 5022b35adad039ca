package mirror

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// S3Config selects the bucket and how to reach it. Empty values fall back
// to the standard AWS configuration chain.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Profile      string
	UsePathStyle bool
}

// putObjectAPI is the part of *s3.Client the mirror uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files to a bucket.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3 creates an S3 mirror using the default AWS configuration chain,
// with optional overrides from cfg.
func NewS3(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 mirror: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 mirror: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3(client, cfg, logger), nil
}

func newS3(client putObjectAPI, cfg S3Config, logger zerolog.Logger) *S3 {
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "mirror").Str("bucket", cfg.Bucket).Logger(),
	}
}

// Put uploads localPath to prefix/key.
func (s *S3) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath) // #nosec G304 - path produced by the downloader
	if err != nil {
		return err
	}
	defer f.Close()

	objectKey := Key(s.prefix, key)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("put s3://%s/%s: %s: %w", s.bucket, objectKey, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	s.logger.Debug().Str("key", objectKey).Msg("Mirrored")
	return nil
}
