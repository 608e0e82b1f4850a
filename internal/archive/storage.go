package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// WriteObject stores data under bucket/object.
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error

	// ReadObject returns the bytes stored at the given gs:// URI.
	ReadObject(ctx context.Context, uri string) ([]byte, error)
}

// DefaultWriteTimeout bounds one object upload.
const DefaultWriteTimeout = 2 * time.Minute

// GCSObjectStore is the concrete implementation of ObjectStore
// that interacts with Google Cloud Storage.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore creates a store using Application Default Credentials.
func NewGCSObjectStore(ctx context.Context) (*GCSObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSObjectStore: create storage client: %w", err)
	}
	return &GCSObjectStore{client: client}, nil
}

// Close closes the underlying storage client.
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

// WriteObject uploads data to bucket/object.
func (s *GCSObjectStore) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultWriteTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("WriteObject: write %s/%s: %w", bucket, object, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("WriteObject: finalize %s/%s: %w", bucket, object, err)
	}
	return nil
}

// ReadObject downloads the bytes at a gs:// URI.
func (s *GCSObjectStore) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading bytes: %w", err)
	}
	return data, nil
}

// URI returns the gs:// URI of bucket/object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits a gs:// URI into bucket and object path.
// e.g., "gs://bucket/team/conn/page.json" → "bucket", "team/conn/page.json"
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], path.Clean(parts[1]), nil
}
