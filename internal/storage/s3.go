// Package storage provides pre-signed download URLs for document files
// held in an S3-compatible bucket. Files land in the bucket through the
// dashboard's own upload flow; this service only signs GET requests so
// report consumers can fetch a version's file without the bucket being
// public.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrEmptyKey is returned when an object key is empty.
var ErrEmptyKey = errors.New("object key cannot be empty")

// Service signs download URLs for document files in an S3-compatible bucket.
type Service struct {
	presignClient *s3.PresignClient
	bucketName    string
	urlExpiry     time.Duration
}

// ServiceConfig holds configuration for the storage service.
// Endpoint is optional; set it for S3-compatible providers (R2, MinIO),
// leave empty for AWS S3.
type ServiceConfig struct {
	BucketName       string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	URLExpiryMinutes int // Default: 15 minutes
}

// NewService creates a new storage service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}

	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		// S3-compatible providers require path-style addressing
		opts.UsePathStyle = true
	}

	return &Service{
		presignClient: s3.NewPresignClient(s3.New(opts)),
		bucketName:    cfg.BucketName,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
	}, nil
}

// PresignGet generates a pre-signed GET URL for an existing document file,
// so viewers can download it without the bucket being public.
func (s *Service) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if expires <= 0 {
		expires = s.urlExpiry
	}

	getObjectInput := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, getObjectInput, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}

	return presignedReq.URL, nil
}

// BucketName returns the bucket name used by the service.
func (s *Service) BucketName() string {
	return s.bucketName
}
