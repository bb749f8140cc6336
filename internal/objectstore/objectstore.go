// Package objectstore uploads import files to the object storage location
// handed out with temporary credentials by the Risk Modeler API.
package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Upload tuning shared by every backend.
const (
	ContentType = "text/csv"
	PartSize    = 8 * 1024 * 1024
	Concurrency = 10
)

// Backend names accepted by New.
const (
	BackendMinio = "minio"
	BackendAWS   = "aws"
)

// Target is the destination of one upload together with the temporary
// credentials that authorize it.
type Target struct {
	Bucket          string
	Key             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Option configures an uploader.
type Option func(*options)

type options struct {
	log *logrus.Entry
}

// WithLogger sets the logger used for upload progress.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Uploader writes a local file to a Target.
type Uploader interface {
	Upload(ctx context.Context, target Target, localPath string) error
}

// SplitPath splits an object storage path "bucket/prefix/..." on the first
// slash.
func SplitPath(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, prefix
}

// ObjectKey is the key an uploaded file is stored under.
func ObjectKey(prefix, fileID, filename string) string {
	return fmt.Sprintf("%s/%s-%s", prefix, fileID, filename)
}

// New returns the uploader for backend. endpoint is the object storage URL,
// for example https://s3.amazonaws.com.
func New(backend, endpoint string, opts ...Option) (Uploader, error) {
	switch strings.ToLower(backend) {
	case "", BackendMinio:
		return NewMinioUploader(endpoint, opts...)
	case BackendAWS, "s3":
		return NewS3Uploader(endpoint, opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend '%s': must be %s or %s", backend, BackendMinio, BackendAWS)
	}
}
