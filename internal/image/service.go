package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/celestial/service/internal/storage"
)

// ErrEmptyFile is returned when an upload contains no bytes.
var ErrEmptyFile = errors.New("uploaded file is empty")

// ErrFileTooLarge is returned when an upload exceeds the configured maximum.
var ErrFileTooLarge = errors.New("uploaded file exceeds maximum size")

// ErrForbidden is returned when a principal acts on an image it does not own.
var ErrForbidden = errors.New("image access denied")

// RecordStore is the persistence contract the Service depends on.
// *Repository satisfies it; tests substitute an in-memory fake.
type RecordStore interface {
	Create(ctx context.Context, ownerID, title, storageKey string) (*Image, error)
	GetByID(ctx context.Context, id string) (*Image, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Image, error)
	UpdateTitle(ctx context.Context, id, title string) (*Image, error)
	Delete(ctx context.Context, id string) error
}

// Service is the single orchestration point for the image lifecycle. All
// writes to the record store and blob storage go through it.
type Service struct {
	records  RecordStore
	blobs    storage.Storage
	maxBytes int64
}

// NewService creates a new image Service. maxBytes caps upload size.
func NewService(records RecordStore, blobs storage.Storage, maxBytes int64) *Service {
	return &Service{records: records, blobs: blobs, maxBytes: maxBytes}
}

// Create stores the uploaded bytes under a generated "images/" key, then
// inserts the metadata row with the caller as owner. If the row insert fails
// after the blob was written, the blob is removed best-effort so no orphan
// outlives the failed create; a failed cleanup is logged because the insert
// error is the one the caller needs.
func (s *Service) Create(ctx context.Context, ownerID, title, filename string, file io.Reader, size int64, contentType string) (*Image, error) {
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrFileTooLarge, size, s.maxBytes)
	}

	key := storage.NewKey("images", filename)
	if err := s.blobs.Upload(ctx, key, file, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	img, err := s.records.Create(ctx, ownerID, title, key)
	if err != nil {
		if cleanupErr := s.blobs.Delete(ctx, key); cleanupErr != nil {
			log.Printf("image: orphaned blob %q left after failed create: %v", key, cleanupErr)
		}
		return nil, fmt.Errorf("create image record: %w", err)
	}

	log.Printf("image: saved id=%s key=%s url=%s", img.ID, img.StorageKey, s.blobs.PublicURL(img.StorageKey))
	return img, nil
}

// List returns the caller's own images, most recent first. Scoping happens
// in the query, never as a post-hoc filter over other users' rows.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Image, error) {
	return s.records.ListByOwner(ctx, ownerID)
}

// Get returns a single image readable by the caller.
func (s *Service) Get(ctx context.Context, principalID, imageID string) (*Image, error) {
	img, err := s.records.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(principalID, img, ActionRead) {
		return nil, ErrForbidden
	}
	return img, nil
}

// UpdateTitle changes the display title of an image owned by the caller.
// Owner and storage key are immutable through this path.
func (s *Service) UpdateTitle(ctx context.Context, principalID, imageID, title string) (*Image, error) {
	img, err := s.records.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(principalID, img, ActionUpdate) {
		return nil, ErrForbidden
	}
	return s.records.UpdateTitle(ctx, imageID, title)
}

// Delete removes an image owned by the caller. The record row is deleted
// first — it is the source of truth for existence — then the blob. A blob
// that survives a failed cleanup is logged and left for garbage collection;
// the delete still succeeds from the caller's point of view.
func (s *Service) Delete(ctx context.Context, principalID, imageID string) error {
	img, err := s.records.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if !CanAccess(principalID, img, ActionDelete) {
		return ErrForbidden
	}

	if err := s.records.Delete(ctx, imageID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, img.StorageKey); err != nil {
		log.Printf("image: blob %q left behind after delete of %s: %v", img.StorageKey, imageID, err)
	}
	return nil
}

// URL resolves the public URL for an image's blob.
func (s *Service) URL(img *Image) string {
	return s.blobs.PublicURL(img.StorageKey)
}

// IsNotFound returns true when the error indicates the image does not exist.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden returns true when the error indicates an ownership denial.
func (s *Service) IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
