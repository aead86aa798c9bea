package storage

import "context"

// ObjectStorage captures the minimal S3-compatible operations the exporter
// needs.
type ObjectStorage interface {
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}
