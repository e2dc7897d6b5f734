package utils

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SnapshotArchive stores enrichment results as objects in one S3 bucket.
type SnapshotArchive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewSnapshotArchive(ctx context.Context, region, bucket string) (*SnapshotArchive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_BUCKET_NAME is not set")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &SnapshotArchive{client: client, presign: s3.NewPresignClient(client), bucket: bucket}, nil
}

// Put uploads body under objectKey and returns the key.
func (a *SnapshotArchive) Put(ctx context.Context, objectKey string, body io.Reader, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", objectKey, err)
	}
	return objectKey, nil
}

// PresignURL returns a time-limited download URL for objectKey.
func (a *SnapshotArchive) PresignURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	request, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return request.URL, nil
}
