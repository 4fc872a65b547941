package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestial/service/internal/storage"
)

// fakeRecords is an in-memory RecordStore.
type fakeRecords struct {
	mu     sync.Mutex
	rows   map[string]*Image
	nextID int
	clock  time.Time

	failCreate error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		rows:  map[string]*Image{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRecords) Create(ctx context.Context, ownerID, title, storageKey string) (*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	img := &Image{
		ID:         fmt.Sprintf("img-%d", f.nextID),
		OwnerID:    ownerID,
		Title:      title,
		StorageKey: storageKey,
		CreatedAt:  f.clock,
	}
	f.rows[img.ID] = img
	return copyImage(img), nil
}

func (f *fakeRecords) GetByID(ctx context.Context, id string) (*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyImage(img), nil
}

func (f *fakeRecords) ListByOwner(ctx context.Context, ownerID string) ([]*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Image
	for _, img := range f.rows {
		if img.OwnerID == ownerID {
			out = append(out, copyImage(img))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRecords) UpdateTitle(ctx context.Context, id, title string) (*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	img.Title = title
	return copyImage(img), nil
}

func (f *fakeRecords) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func copyImage(img *Image) *Image {
	c := *img
	return &c
}

// fakeBlobs is an in-memory storage.Storage.
type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte

	failUpload error
	failDelete error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if f.failUpload != nil {
		return f.failUpload
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return nil
}

func (f *fakeBlobs) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeBlobs) PublicURL(key string) string {
	return "/media/" + key
}

func newTestService() (*Service, *fakeRecords, *fakeBlobs) {
	records := newFakeRecords()
	blobs := newFakeBlobs()
	return NewService(records, blobs, 1<<20), records, blobs
}

func upload(t *testing.T, svc *Service, owner, title string) *Image {
	t.Helper()
	img, err := svc.Create(context.Background(), owner, title, "cat.png", bytes.NewReader([]byte("pngdata-pngdata-x")), 17, "image/png")
	require.NoError(t, err)
	return img
}

func TestCreateSetsOwnerAndStoresBlob(t *testing.T) {
	svc, _, blobs := newTestService()

	img := upload(t, svc, "alice", "cat.png")

	assert.Equal(t, "alice", img.OwnerID)
	assert.True(t, strings.HasPrefix(img.StorageKey, "images/"))
	assert.Equal(t, ".png", img.StorageKey[len(img.StorageKey)-4:])

	exists, err := blobs.Exists(context.Background(), img.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.True(t, strings.HasPrefix(svc.URL(img), "/media/images/"))
}

func TestCreateRejectsEmptyFile(t *testing.T) {
	svc, records, blobs := newTestService()

	_, err := svc.Create(context.Background(), "alice", "empty", "x.png", bytes.NewReader(nil), 0, "image/png")
	require.ErrorIs(t, err, ErrEmptyFile)

	// Neither a row nor a blob may exist after a rejected upload.
	imgs, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, imgs)
	assert.Empty(t, blobs.blobs)
	assert.Empty(t, records.rows)
}

func TestCreateRejectsOversizedFile(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), "alice", "big", "big.png", bytes.NewReader([]byte("x")), 2<<20, "image/png")
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestCreateCompensatesBlobOnRecordFailure(t *testing.T) {
	svc, records, blobs := newTestService()
	records.failCreate = errors.New("insert failed")

	_, err := svc.Create(context.Background(), "alice", "cat", "cat.png", bytes.NewReader([]byte("data")), 4, "image/png")
	require.Error(t, err)

	// The orphaned blob must have been cleaned up.
	assert.Empty(t, blobs.blobs)
}

func TestCreateFailedUploadLeavesNoRecord(t *testing.T) {
	svc, records, _ := newTestService()
	blobs := svc.blobs.(*fakeBlobs)
	blobs.failUpload = fmt.Errorf("%w: disk full", storage.ErrWrite)

	_, err := svc.Create(context.Background(), "alice", "cat", "cat.png", bytes.NewReader([]byte("data")), 4, "image/png")
	require.ErrorIs(t, err, storage.ErrWrite)
	assert.Empty(t, records.rows)
}

func TestListIsOwnerScopedAndNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()

	a1 := upload(t, svc, "alice", "first")
	a2 := upload(t, svc, "alice", "second")
	upload(t, svc, "bob", "bobs")
	a3 := upload(t, svc, "alice", "third")

	imgs, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, imgs, 3)

	// Most recent first; never another owner's images.
	assert.Equal(t, []string{a3.ID, a2.ID, a1.ID}, []string{imgs[0].ID, imgs[1].ID, imgs[2].ID})
	for _, img := range imgs {
		assert.Equal(t, "alice", img.OwnerID)
	}

	bobs, err := svc.List(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bobs", bobs[0].Title)
}

func TestUpdateTitleByOwner(t *testing.T) {
	svc, _, _ := newTestService()
	img := upload(t, svc, "alice", "old")

	updated, err := svc.UpdateTitle(context.Background(), "alice", img.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)

	// Owner and storage key are immutable through update.
	assert.Equal(t, img.OwnerID, updated.OwnerID)
	assert.Equal(t, img.StorageKey, updated.StorageKey)
	assert.Equal(t, img.CreatedAt, updated.CreatedAt)
}

func TestUpdateByNonOwnerIsForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	img := upload(t, svc, "alice", "cat")

	_, err := svc.UpdateTitle(context.Background(), "bob", img.ID, "stolen")
	require.ErrorIs(t, err, ErrForbidden)
	assert.True(t, svc.IsForbidden(err))

	// Title unchanged.
	got, err := svc.Get(context.Background(), "alice", img.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat", got.Title)
}

func TestUpdateUnknownImage(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.UpdateTitle(context.Background(), "alice", "missing", "x")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, svc.IsNotFound(err))
}

func TestDeleteByOwnerRemovesRecordAndBlob(t *testing.T) {
	svc, _, blobs := newTestService()
	img := upload(t, svc, "alice", "cat")

	require.NoError(t, svc.Delete(context.Background(), "alice", img.ID))

	exists, err := blobs.Exists(context.Background(), img.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)

	imgs, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func TestDeleteByNonOwnerIsForbidden(t *testing.T) {
	svc, _, blobs := newTestService()
	img := upload(t, svc, "alice", "cat")

	err := svc.Delete(context.Background(), "bob", img.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// Nothing was removed.
	exists, err := blobs.Exists(context.Background(), img.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	img := upload(t, svc, "alice", "cat")

	require.NoError(t, svc.Delete(context.Background(), "alice", img.ID))
	err := svc.Delete(context.Background(), "alice", img.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSucceedsWhenBlobCleanupFails(t *testing.T) {
	svc, _, blobs := newTestService()
	img := upload(t, svc, "alice", "cat")
	blobs.failDelete = errors.New("backend down")

	// Record deletion is the source of truth; a stranded blob is logged
	// and left for garbage collection.
	require.NoError(t, svc.Delete(context.Background(), "alice", img.ID))

	imgs, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func TestGetByReaderThatIsNotOwner(t *testing.T) {
	svc, _, _ := newTestService()
	img := upload(t, svc, "alice", "cat")

	// Reads are allowed for any authenticated principal.
	got, err := svc.Get(context.Background(), "bob", img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.ID, got.ID)
}
