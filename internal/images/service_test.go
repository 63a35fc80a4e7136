package images

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehost/service/internal/metastore"
)

// fakeStore is an in-memory metastore.Store that records calls.
type fakeStore struct {
	mu       sync.Mutex
	images   map[string]metastore.ImageRecord
	index    map[string][]string // uid -> iids, newest appended last
	deleted  [][2]string         // (iid, uid)
	lastList int                 // limit passed to UserImageIDs

	putErr error
	delErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		images: make(map[string]metastore.ImageRecord),
		index:  make(map[string][]string),
	}
}

func (f *fakeStore) CreateUser(context.Context, metastore.User) error { return nil }
func (f *fakeStore) UserByName(context.Context, string) (*metastore.User, error) {
	return nil, metastore.ErrNotFound
}

func (f *fakeStore) PutImage(_ context.Context, rec metastore.ImageRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[rec.ID] = rec
	f.index[rec.OwnerID] = append(f.index[rec.OwnerID], rec.ID)
	return nil
}

func (f *fakeStore) Image(_ context.Context, iid string) (*metastore.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.images[iid]
	if !ok {
		return nil, metastore.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeStore) ImagesBatch(_ context.Context, iids []string) ([]*metastore.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := make([]*metastore.ImageRecord, len(iids))
	for i, iid := range iids {
		if rec, ok := f.images[iid]; ok {
			r := rec
			recs[i] = &r
		}
	}
	return recs, nil
}

func (f *fakeStore) UserImageIDs(_ context.Context, uid string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = limit
	ids := f.index[uid]
	// Newest first, like the real backends.
	out := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ids[i])
	}
	return out, nil
}

func (f *fakeStore) DeleteImage(_ context.Context, iid, uid string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.images, iid)
	f.deleted = append(f.deleted, [2]string{iid, uid})
	return nil
}

func (f *fakeStore) IncrementViews(_ context.Context, iid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.images[iid]
	if !ok {
		return metastore.ErrNotFound
	}
	rec.Views++
	f.images[iid] = rec
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

// fakeObjects is a storage.Storage that hands out recognizable URLs.
type fakeObjects struct {
	mu       sync.Mutex
	putKeys  []string
	putTypes []string
	putTTLs  []time.Duration
	getKeys  []string
	deleted  []string

	presignPutErr error
	presignGetErr error
	deleteErr     error
}

func (f *fakeObjects) PresignPut(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	if f.presignPutErr != nil {
		return "", f.presignPutErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putKeys = append(f.putKeys, key)
	f.putTypes = append(f.putTypes, contentType)
	f.putTTLs = append(f.putTTLs, expires)
	return "https://upload.test/" + key, nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	if f.presignGetErr != nil {
		return "", f.presignGetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getKeys = append(f.getKeys, key)
	return "https://download.test/" + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestService() (*Service, *fakeStore, *fakeObjects) {
	store := newFakeStore()
	objects := &fakeObjects{}
	svc := NewService(store, objects, "http://app.test", time.Hour, 30*time.Minute)
	return svc, store, objects
}

func TestRequestUploadBuildsScopedKey(t *testing.T) {
	svc, _, objects := newTestService()

	ticket, err := svc.RequestUpload(context.Background(), "u_1", "My Photo.JPG", "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ticket.Key, "uploads/u_1/img_"), "key %q", ticket.Key)
	assert.True(t, strings.HasSuffix(ticket.Key, "/my-photo.jpg"), "key %q", ticket.Key)
	assert.Equal(t, "my-photo.jpg", ticket.Filename)
	assert.True(t, strings.HasPrefix(ticket.IID, "img_"))
	assert.Equal(t, "https://upload.test/"+ticket.Key, ticket.PresignedURL)

	require.Len(t, objects.putKeys, 1)
	assert.Equal(t, "image/jpeg", objects.putTypes[0])
	assert.Equal(t, time.Hour, objects.putTTLs[0])
}

func TestRequestUploadUniqueIDs(t *testing.T) {
	svc, _, _ := newTestService()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ticket, err := svc.RequestUpload(context.Background(), "u_1", "a.png", "image/png")
		require.NoError(t, err)
		assert.False(t, seen[ticket.IID], "duplicate id %s", ticket.IID)
		seen[ticket.IID] = true
	}
}

func TestRequestUploadLeavesNoTrace(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RequestUpload(ctx, "u_1", "a.png", "image/png")
		require.NoError(t, err)
	}

	// An abandoned grant must never surface in the gallery.
	items, err := svc.Gallery(ctx, "u_1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, store.images)
}

func TestRequestUploadStorageFailure(t *testing.T) {
	svc, _, objects := newTestService()
	objects.presignPutErr = errors.New("minio down")

	_, err := svc.RequestUpload(context.Background(), "u_1", "a.png", "image/png")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestConfirmUploadStoresRecord(t *testing.T) {
	svc, store, objects := newTestService()

	key := "uploads/u_1/img_abc/a.png"
	result, err := svc.ConfirmUpload(context.Background(), "u_1", "img_abc", key, "a.png", "image/png", true)
	require.NoError(t, err)

	assert.Equal(t, "img_abc", result.ID)
	assert.Equal(t, "http://app.test/api/v1/image/img_abc", result.URL)

	rec, ok := store.images["img_abc"]
	require.True(t, ok, "record not stored")
	assert.Equal(t, "u_1", rec.OwnerID)
	assert.Equal(t, key, rec.StorageKey)
	assert.True(t, rec.Private)
	assert.NotZero(t, rec.CreatedAt)
	assert.Equal(t, []string{"img_abc"}, store.index["u_1"])

	// Confirm trusts that the client completed its PUT; it never checks the
	// object itself.
	assert.Empty(t, objects.putKeys)
	assert.Empty(t, objects.getKeys)
}

func TestConfirmUploadRejectsForeignKey(t *testing.T) {
	svc, store, _ := newTestService()

	tests := []struct {
		name string
		key  string
	}{
		{"other user's prefix", "uploads/u_2/img_abc/a.png"},
		{"other image id", "uploads/u_1/img_other/a.png"},
		{"unscoped key", "somewhere/else.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ConfirmUpload(context.Background(), "u_1", "img_abc", tt.key, "a.png", "image/png", false)
			assert.ErrorIs(t, err, ErrKeyMismatch)
		})
	}
	assert.Empty(t, store.images)
}

func TestConfirmUploadReconfirmIsNoOp(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	first, err := svc.ConfirmUpload(ctx, "u_1", "img_abc", "uploads/u_1/img_abc/a.png", "a.png", "image/png", false)
	require.NoError(t, err)
	again, err := svc.ConfirmUpload(ctx, "u_1", "img_abc", "uploads/u_1/img_abc/a.png", "a.png", "image/png", true)
	require.NoError(t, err)

	// The retry gets the same URL back; the stored record is untouched and
	// the index holds a single entry.
	assert.Equal(t, first.URL, again.URL)
	rec := store.images["img_abc"]
	assert.False(t, rec.Private)
	assert.Equal(t, []string{"img_abc"}, store.index["u_1"])
}

func TestConfirmUploadForeignOwnerForbidden(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ConfirmUpload(ctx, "u_1", "img_abc", "uploads/u_1/img_abc/a.png", "a.png", "image/png", false)
	require.NoError(t, err)

	// A second account presenting its own key cannot reclaim the id.
	_, err = svc.ConfirmUpload(ctx, "u_2", "img_abc", "uploads/u_2/img_abc/b.png", "b.png", "image/png", false)
	assert.ErrorIs(t, err, ErrForbidden)

	rec := store.images["img_abc"]
	assert.Equal(t, "u_1", rec.OwnerID)
	assert.Equal(t, "a.png", rec.Filename)
}

func TestGallerySkipsGhostEntries(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ConfirmUpload(ctx, "u_1", "img_a", "uploads/u_1/img_a/a.png", "a.png", "image/png", false)
	require.NoError(t, err)
	_, err = svc.ConfirmUpload(ctx, "u_1", "img_b", "uploads/u_1/img_b/b.png", "b.png", "image/png", false)
	require.NoError(t, err)

	// Simulate an index entry whose record vanished.
	delete(store.images, "img_a")

	items, err := svc.Gallery(ctx, "u_1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "img_b", items[0].ID)
	assert.Equal(t, "http://app.test/api/v1/image/img_b", items[0].URL)
	assert.Equal(t, 50, store.lastList)
}

func TestGalleryEmpty(t *testing.T) {
	svc, _, _ := newTestService()

	items, err := svc.Gallery(context.Background(), "u_nobody")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestResolveViewReturnsPresignedURLAndCountsView(t *testing.T) {
	svc, store, objects := newTestService()
	ctx := context.Background()

	key := "uploads/u_1/img_a/a.png"
	_, err := svc.ConfirmUpload(ctx, "u_1", "img_a", key, "a.png", "image/png", false)
	require.NoError(t, err)

	url, err := svc.ResolveView(ctx, "img_a")
	require.NoError(t, err)
	assert.Equal(t, "https://download.test/"+key, url)
	assert.Equal(t, []string{key}, objects.getKeys)
	assert.Equal(t, int64(1), store.images["img_a"].Views)
}

func TestResolveViewNotFound(t *testing.T) {
	svc, _, objects := newTestService()

	_, err := svc.ResolveView(context.Background(), "img_nope")
	assert.ErrorIs(t, err, metastore.ErrNotFound)
	assert.Empty(t, objects.getKeys, "object store contacted for a missing record")
}

func TestResolveViewCorruptRecord(t *testing.T) {
	svc, store, objects := newTestService()

	store.images["img_bad"] = metastore.ImageRecord{ID: "img_bad", OwnerID: "u_1"}

	_, err := svc.ResolveView(context.Background(), "img_bad")
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.Empty(t, objects.getKeys)
}

func TestDeleteRemovesObjectAndRecord(t *testing.T) {
	svc, store, objects := newTestService()
	ctx := context.Background()

	key := "uploads/u_1/img_a/a.png"
	_, err := svc.ConfirmUpload(ctx, "u_1", "img_a", key, "a.png", "image/png", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u_1", "img_a"))

	assert.Equal(t, []string{key}, objects.deleted)
	assert.Equal(t, [][2]string{{"img_a", "u_1"}}, store.deleted)
	_, ok := store.images["img_a"]
	assert.False(t, ok)
}

func TestDeleteForbiddenLeavesEverything(t *testing.T) {
	svc, store, objects := newTestService()
	ctx := context.Background()

	_, err := svc.ConfirmUpload(ctx, "u_1", "img_a", "uploads/u_1/img_a/a.png", "a.png", "image/png", false)
	require.NoError(t, err)

	err = svc.Delete(ctx, "u_2", "img_a")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, objects.deleted)
	assert.Empty(t, store.deleted)
	_, ok := store.images["img_a"]
	assert.True(t, ok)
}

func TestDeleteMissing(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.Delete(context.Background(), "u_1", "img_nope")
	assert.ErrorIs(t, err, metastore.ErrNotFound)
}

func TestDeleteCorruptRecordKeepsMetadata(t *testing.T) {
	svc, store, objects := newTestService()

	store.images["img_bad"] = metastore.ImageRecord{ID: "img_bad", OwnerID: "u_1"}

	err := svc.Delete(context.Background(), "u_1", "img_bad")
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.Empty(t, objects.deleted)
	_, ok := store.images["img_bad"]
	assert.True(t, ok)
}

func TestDeleteStorageFailureKeepsMetadata(t *testing.T) {
	svc, store, objects := newTestService()
	ctx := context.Background()

	_, err := svc.ConfirmUpload(ctx, "u_1", "img_a", "uploads/u_1/img_a/a.png", "a.png", "image/png", false)
	require.NoError(t, err)

	objects.deleteErr = errors.New("s3 down")
	err = svc.Delete(ctx, "u_1", "img_a")
	assert.ErrorIs(t, err, ErrStorage)

	// Metadata stays so the image is still visible and the delete retryable.
	assert.Empty(t, store.deleted)
	_, ok := store.images["img_a"]
	assert.True(t, ok)
}
