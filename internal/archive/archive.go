// ABOUTME: Optional archival of exported CSV files to S3-compatible object storage
// ABOUTME: Objects are keyed prefix/YYYY/MM/DD/filename; a no-op archiver is used when disabled

// Package archive copies exported mapping files to object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when S3 archiving is configured without a bucket.
var ErrNoBucket = errors.New("archive bucket is required")

// Archiver stores a copy of an exported file and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Archive(context.Context, string, []byte) (string, error) {
	return "", nil
}

// S3Config configures an S3Archiver.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // for MinIO and other S3-compatible stores
	AccessKey    string // empty uses the default AWS credential chain
	SecretKey    string
	UsePathStyle bool
}

// objectPutter is the subset of *s3.Client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Archiver uploads exports to a bucket.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewS3Archiver builds an S3 client from cfg.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
		logger: slog.Default().With("component", "archive"),
	}, nil
}

// Key returns the object key for filename archived at t.
func (a *S3Archiver) Key(t time.Time, filename string) string {
	return path.Join(a.prefix, t.UTC().Format("2006/01/02"), path.Base(filename))
}

// Archive uploads data and returns the s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	key := a.Key(a.now(), filename)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", key, a.bucket, err)
	}

	location := "s3://" + a.bucket + "/" + key
	a.logger.Info("archived export", "location", location, "bytes", len(data))
	return location, nil
}
