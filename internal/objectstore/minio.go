package objectstore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "https://s3.amazonaws.com"

// MinioUploader uploads with minio-go. A client is built per upload because
// every file comes with its own session credentials.
type MinioUploader struct {
	host   string
	secure bool
	log    *logrus.Entry
}

// NewMinioUploader creates an uploader for endpoint.
func NewMinioUploader(endpoint string, opts ...Option) (*MinioUploader, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid storage endpoint '%s': %w (expected format: https://hostname:port)", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid storage endpoint scheme '%s': must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid storage endpoint '%s': missing hostname", endpoint)
	}

	return &MinioUploader{host: u.Host, secure: u.Scheme == "https", log: buildOptions(opts).log}, nil
}

// Upload puts localPath at target as text/csv, in 8 MiB parts when large.
func (m *MinioUploader) Upload(ctx context.Context, target Target, localPath string) error {
	client, err := minio.New(m.host, &minio.Options{
		Creds:  credentials.NewStaticV4(target.AccessKeyID, target.SecretAccessKey, target.SessionToken),
		Secure: m.secure,
		Region: target.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage client for %s: %w", m.host, err)
	}

	m.log.WithFields(logrus.Fields{
		"bucket": target.Bucket,
		"key":    target.Key,
		"file":   localPath,
	}).Info("Uploading file")

	info, err := client.FPutObject(ctx, target.Bucket, target.Key, localPath, minio.PutObjectOptions{
		ContentType: ContentType,
		PartSize:    PartSize,
		NumThreads:  Concurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, target.Bucket, target.Key, err)
	}

	m.log.WithFields(logrus.Fields{
		"key":  info.Key,
		"size": info.Size,
	}).Info("File uploaded")
	return nil
}
