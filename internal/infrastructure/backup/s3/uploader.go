// Package s3 uploads dataset exports to S3 or an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

// PutObjectAPI is the subset of the S3 client used by Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader implements ports.BackupTarget.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewUploader creates an Uploader from cfg.
func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("backup.s3.bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewUploaderWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewUploaderWithClient creates an Uploader on an existing client.
func NewUploaderWithClient(client PutObjectAPI, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Upload writes data to <prefix><name> and returns its s3:// location.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := u.prefix + name
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return "s3://" + path.Join(u.bucket, key), nil
}
