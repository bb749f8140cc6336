package objectstore

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Uploader uploads with the AWS SDK multipart upload manager.
type S3Uploader struct {
	endpoint string
	log      *logrus.Entry
}

// NewS3Uploader creates an uploader. An empty endpoint or the default AWS
// endpoint uses regional AWS resolution; anything else is used as the
// base endpoint with path-style addressing.
func NewS3Uploader(endpoint string, opts ...Option) *S3Uploader {
	if endpoint == DefaultEndpoint {
		endpoint = ""
	}
	return &S3Uploader{endpoint: endpoint, log: buildOptions(opts).log}
}

// Upload puts localPath at target as text/csv.
func (u *S3Uploader) Upload(ctx context.Context, target Target, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() {
		_ = file.Close() // Close errors are not critical
	}()

	client := s3.New(s3.Options{
		Region:      target.Region,
		Credentials: credentials.NewStaticCredentialsProvider(target.AccessKeyID, target.SecretAccessKey, target.SessionToken),
	}, func(o *s3.Options) {
		if u.endpoint != "" {
			o.BaseEndpoint = aws.String(u.endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(up *manager.Uploader) {
		up.PartSize = PartSize
		up.Concurrency = Concurrency
	})

	u.log.WithFields(logrus.Fields{
		"bucket": target.Bucket,
		"key":    target.Key,
		"file":   localPath,
	}).Info("Uploading file")

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(target.Bucket),
		Key:         aws.String(target.Key),
		Body:        file,
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, target.Bucket, target.Key, err)
	}

	u.log.WithField("key", target.Key).Info("File uploaded")
	return nil
}
