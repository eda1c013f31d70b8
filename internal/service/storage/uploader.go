package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sentinelvision/internal/config"
)

// Uploader copies a stored key frame to remote object storage.
type Uploader interface {
	Upload(ctx context.Context, objectKey, filePath string) error
}

type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Uploader uploads key frames to an S3-compatible bucket.
type S3Uploader struct {
	client objectClient
	bucket string
}

// NewS3Uploader connects to the endpoint configured in cfg.
func NewS3Uploader(cfg *config.Config) (*S3Uploader, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return &S3Uploader{client: client, bucket: cfg.S3Bucket}, nil
}

// EnsureBucket creates the target bucket when it does not exist yet.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload puts the file at filePath under objectKey.
func (u *S3Uploader) Upload(ctx context.Context, objectKey, filePath string) error {
	_, err := u.client.FPutObject(ctx, u.bucket, objectKey, filePath, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", filePath, u.bucket, objectKey, err)
	}
	return nil
}
