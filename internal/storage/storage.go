package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// AttachmentStore keeps per-dream attachments in an object storage
// backend, keyed by dream id and filename.
type AttachmentStore struct {
	backend ObjectStorage
}

// NewAttachmentStore constructs an AttachmentStore for the provided backend.
func NewAttachmentStore(backend ObjectStorage) *AttachmentStore {
	return &AttachmentStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *AttachmentStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an attachment for the given dream.
func (s *AttachmentStore) Put(ctx context.Context, dreamID int, filename string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, attachmentKey(dreamID, filename), r, size, contentType)
}

// Get opens a reader for an attachment of the given dream.
func (s *AttachmentStore) Get(ctx context.Context, dreamID int, filename string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, attachmentKey(dreamID, filename))
}

// Delete removes an attachment of the given dream.
func (s *AttachmentStore) Delete(ctx context.Context, dreamID int, filename string) error {
	return s.backend.Delete(ctx, attachmentKey(dreamID, filename))
}

// Bucket returns the configured bucket name.
func (s *AttachmentStore) Bucket() string {
	return s.backend.Bucket()
}

func attachmentKey(dreamID int, filename string) string {
	return fmt.Sprintf("dreams/%d/%s", dreamID, filename)
}
