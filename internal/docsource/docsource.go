// Package docsource fetches document bytes for ingestion: local files for
// the CLI, Cloud Storage objects for bucket-driven workflows. It can also
// archive processed originals back to a bucket.
package docsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// uploadTimeout bounds one archive upload.
const uploadTimeout = 2 * time.Minute

// Source resolves document references. It assumes Application Default
// Credentials when Cloud Storage references are used.
type Source struct {
	client *storage.Client
}

// New creates a Source. Client options are passed through to the storage
// client, which is only dialed lazily on the first gs:// reference.
func New(ctx context.Context, opts ...option.ClientOption) (*Source, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Source{client: client}, nil
}

// NewLocal creates a Source that can only read local files. Used when no
// cloud credentials are configured.
func NewLocal() *Source {
	return &Source{}
}

// Close releases the storage client.
func (s *Source) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Fetch reads the bytes behind a reference: a gs://bucket/object URI or a
// local filesystem path. It returns the bare filename along with the data.
func (s *Source) Fetch(ctx context.Context, ref string) (filename string, data []byte, err error) {
	if strings.HasPrefix(ref, "gs://") {
		return s.fetchObject(ctx, ref)
	}

	data, err = os.ReadFile(ref)
	if err != nil {
		return "", nil, fmt.Errorf("read file %q: %w", ref, err)
	}
	return filepath.Base(ref), data, nil
}

func (s *Source) fetchObject(ctx context.Context, uri string) (string, []byte, error) {
	if s.client == nil {
		return "", nil, fmt.Errorf("storage client not configured, cannot fetch %s", uri)
	}

	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return "", nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("open object reader %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read object %s: %w", uri, err)
	}
	return path.Base(object), data, nil
}

// Archive stores a processed original under the given bucket and object
// name, so uploads remain auditable after extraction.
func (s *Source) Archive(ctx context.Context, bucket, objectName string, data []byte) error {
	if s.client == nil {
		return fmt.Errorf("storage client not configured, cannot archive %s", objectName)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s: %w", objectName, err)
	}
	return nil
}

// ArchiveRef stores a processed original under a gs://bucket/prefix
// destination, keyed by its original filename.
func (s *Source) ArchiveRef(ctx context.Context, dest, filename string, data []byte) error {
	bucket, prefix, err := parseGCSURI(dest)
	if err != nil {
		return err
	}
	return s.Archive(ctx, bucket, path.Join(prefix, filename), data)
}

// parseGCSURI splits gs://bucket/path/to/object into bucket and object.
func parseGCSURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage URI: %s", uri)
	}
	return parts[0], parts[1], nil
}
