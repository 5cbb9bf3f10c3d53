package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/minio"
)

type MinioClient struct {
	client     *minioLib.Client
	bucketName string
	baseURL    string
	logger     zerolog.Logger
}

func NewClient(cfg *config.MinIOConfig) (minio.Client, error) {
	log := logger.GetLogger("minio-client")

	client, err := minioLib.New(cfg.Endpoint, &minioLib.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.SSL,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing MinIO client: %w", err)
	}

	mc := &MinioClient{
		client:     client,
		bucketName: cfg.Bucket,
		baseURL:    publicBaseURL(cfg),
		logger:     log,
	}

	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking if bucket exists: %w", err)
	}

	if !exists {
		err = client.MakeBucket(context.Background(), cfg.Bucket, minioLib.MakeBucketOptions{Region: cfg.Location})
		if err != nil {
			return nil, fmt.Errorf("error creating bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("Bucket created")
	} else {
		log.Info().Str("bucket", cfg.Bucket).Msg("Bucket already exists")
	}

	// Objects are served by public URL, not presigned links, so the bucket
	// must allow anonymous reads.
	if err := client.SetBucketPolicy(context.Background(), cfg.Bucket, readOnlyPolicy(cfg.Bucket)); err != nil {
		return nil, fmt.Errorf("error setting bucket policy: %w", err)
	}

	return mc, nil
}

func publicBaseURL(cfg *config.MinIOConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
}

func readOnlyPolicy(bucket string) string {
	return fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, bucket)
}

// Upload stores an object and returns its public URL
func (m *MinioClient) Upload(ctx context.Context, reader io.Reader, size int64, objectName string, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, objectName, reader, size,
		minioLib.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("error uploading object: %w", err)
	}

	m.logger.Debug().Str("object", objectName).Msg("Object uploaded successfully")
	return m.PublicURL(objectName), nil
}

// PublicURL returns the public URL for an object in the bucket
func (m *MinioClient) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", m.baseURL, m.bucketName, objectName)
}

// Close closes the MinIO client connection
func (m *MinioClient) Close() error {
	return nil
}
