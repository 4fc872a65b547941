// Package image manages uploaded images and their persistence.
package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Image represents one uploaded image owned by a user. StorageKey addresses
// the blob in the configured storage backend and is immutable once set, as
// is OwnerID.
type Image struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"-"`
	Title      string    `json:"title"`
	StorageKey string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ErrNotFound is returned when an image does not exist.
var ErrNotFound = errors.New("image not found")

// Repository handles all image database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new image row and returns the created record.
func (r *Repository) Create(ctx context.Context, ownerID, title, storageKey string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO images (owner_id, title, storage_key)
		 VALUES ($1, $2, $3)
		 RETURNING id, owner_id, title, storage_key, created_at`,
		ownerID, title, storageKey,
	).Scan(&img.ID, &img.OwnerID, &img.Title, &img.StorageKey, &img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

// GetByID fetches an image by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, title, storage_key, created_at
		 FROM images WHERE id = $1`,
		id,
	).Scan(&img.ID, &img.OwnerID, &img.Title, &img.StorageKey, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return img, nil
}

// ListByOwner returns all images owned by ownerID, most recent first.
// The owner filter lives in the query itself so other users' rows are never
// materialized.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, title, storage_key, created_at
		 FROM images
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := []*Image{}
	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.ID, &img.OwnerID, &img.Title, &img.StorageKey, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}

// UpdateTitle sets the title of an image. Owner and storage key are not
// touchable through this path.
func (r *Repository) UpdateTitle(ctx context.Context, id, title string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`UPDATE images SET title = $2 WHERE id = $1
		 RETURNING id, owner_id, title, storage_key, created_at`,
		id, title,
	).Scan(&img.ID, &img.OwnerID, &img.Title, &img.StorageKey, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update image title: %w", err)
	}
	return img, nil
}

// Delete removes the image row. Returns ErrNotFound when no row matched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
