package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Buckets for uploaded attachments.
const (
	ProductImageBucket    = "product-images"
	DeliveryProofsBucket  = "delivery-proofs"
	presignedURLMaxExpiry = 7 * 24 * time.Hour
)

// AttachmentService stores uploaded files (product images, shipment proof of
// delivery) in object storage and hands out presigned download URLs.
type AttachmentService interface {
	Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) error
	GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, bucketName, objectName string) error
	EnsureBucketExists(ctx context.Context, bucketName string) error
}

type minioAttachments struct {
	client *minio.Client
}

func NewAttachmentService(endpoint, accessKey, secretKey string, useSSL bool) (AttachmentService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioAttachments{client: client}, nil
}

func (m *minioAttachments) Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) error {
	contentType := mime.TypeByExtension(filepath.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, bucketName, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *minioAttachments) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	if expiry <= 0 || expiry > presignedURLMaxExpiry {
		return "", fmt.Errorf("presigned URL expiry must be between 0 and %s", presignedURLMaxExpiry)
	}
	url, err := m.client.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (m *minioAttachments) Delete(ctx context.Context, bucketName, objectName string) error {
	return m.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
}

func (m *minioAttachments) EnsureBucketExists(ctx context.Context, bucketName string) error {
	found, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	}
	return nil
}
