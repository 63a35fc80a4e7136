// Package images implements the upload handshake, gallery listing, public
// view resolution and deletion.
//
// Uploads are a three-step handshake. The client asks for an upload slot and
// receives a presigned PUT URL, sends the bytes straight to object storage,
// then confirms the upload so the metadata record becomes visible. The service
// keeps no state between the first and last step: an upload that is never
// confirmed leaves nothing behind but an orphaned object the store can expire.
package images

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imagehost/service/internal/metastore"
	"github.com/imagehost/service/internal/storage"
)

// galleryLimit caps how many images a gallery listing returns.
const galleryLimit = 50

var (
	// ErrKeyMismatch is returned when a confirmed key does not sit under the
	// caller's upload prefix for that image id.
	ErrKeyMismatch = errors.New("key does not belong to this upload")
	// ErrForbidden is returned when the caller does not own the image.
	ErrForbidden = errors.New("forbidden")
	// ErrCorruptRecord is returned when a stored record is missing its
	// storage key. The record is left in place for operator inspection.
	ErrCorruptRecord = errors.New("image record is corrupt")
	// ErrStorage marks failures talking to object storage, as opposed to the
	// metadata store.
	ErrStorage = errors.New("object storage error")
)

// UploadTicket is the reply to an upload request: where to PUT the bytes and
// what to echo back on confirm. Filename is the sanitized form actually used
// in the key.
type UploadTicket struct {
	IID          string `json:"iid"`
	Key          string `json:"key"`
	Filename     string `json:"filename"`
	PresignedURL string `json:"presigned_url"`
}

// ConfirmResult is the reply to a confirmed upload.
type ConfirmResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GalleryItem is one image in a gallery listing. URL points at this service's
// view endpoint, never directly at object storage.
type GalleryItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Mime      string `json:"mime"`
	Private   bool   `json:"private"`
	CreatedAt int64  `json:"created_at"`
	Views     int64  `json:"views"`
	URL       string `json:"url"`
}

// Service contains the business logic for the image lifecycle.
type Service struct {
	store      metastore.Store
	objects    storage.Storage
	publicBase string
	putTTL     time.Duration
	getTTL     time.Duration
}

// NewService creates a new images Service. publicBase is this service's own
// browser-facing base URL, used to build view links.
func NewService(store metastore.Store, objects storage.Storage, publicBase string, putTTL, getTTL time.Duration) *Service {
	return &Service{
		store:      store,
		objects:    objects,
		publicBase: strings.TrimRight(publicBase, "/"),
		putTTL:     putTTL,
		getTTL:     getTTL,
	}
}

// RequestUpload allocates an image id and returns a presigned PUT URL for it.
// Nothing is persisted; the id only becomes real when the upload is confirmed.
// The declared content type is signed into the URL but not restricted to image
// types here; the CLI applies its own allow-list.
func (s *Service) RequestUpload(ctx context.Context, uid, filename, mime string) (*UploadTicket, error) {
	safe := sanitizeFilename(filename)
	iid := newImageID()
	key := "uploads/" + uid + "/" + iid + "/" + safe
	url, err := s.objects.PresignPut(ctx, key, mime, s.putTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &UploadTicket{IID: iid, Key: key, Filename: safe, PresignedURL: url}, nil
}

// ConfirmUpload writes the metadata record for an uploaded object, making the
// image visible. The record and the owner's gallery index entry land in one
// atomic batch. Re-confirming an id the caller already owns is an idempotent
// no-op, so a client that lost the first response can safely retry.
func (s *Service) ConfirmUpload(ctx context.Context, uid, iid, key, filename, mime string, private bool) (*ConfirmResult, error) {
	if !strings.HasPrefix(key, "uploads/"+uid+"/"+iid+"/") {
		return nil, ErrKeyMismatch
	}

	// An id that already exists must not be reclaimable by another account;
	// that would strand the first owner's index entry.
	old, err := s.store.Image(ctx, iid)
	if err != nil && !errors.Is(err, metastore.ErrNotFound) {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if old != nil {
		if old.OwnerID != uid {
			return nil, ErrForbidden
		}
		return &ConfirmResult{ID: iid, URL: s.viewURL(iid)}, nil
	}

	rec := metastore.ImageRecord{
		ID:         iid,
		OwnerID:    uid,
		StorageKey: key,
		Filename:   sanitizeFilename(filename),
		MimeType:   mime,
		Private:    private,
		CreatedAt:  time.Now().Unix(),
		Views:      0,
	}
	if err := s.store.PutImage(ctx, rec); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	return &ConfirmResult{ID: iid, URL: s.viewURL(iid)}, nil
}

// Gallery lists the caller's newest images, at most galleryLimit of them.
// Index entries whose record has vanished are skipped.
func (s *Service) Gallery(ctx context.Context, uid string) ([]GalleryItem, error) {
	ids, err := s.store.UserImageIDs(ctx, uid, galleryLimit)
	if err != nil {
		return nil, fmt.Errorf("list gallery index: %w", err)
	}
	if len(ids) == 0 {
		return []GalleryItem{}, nil
	}

	recs, err := s.store.ImagesBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch gallery records: %w", err)
	}

	items := make([]GalleryItem, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		items = append(items, GalleryItem{
			ID:        rec.ID,
			Filename:  rec.Filename,
			Mime:      rec.MimeType,
			Private:   rec.Private,
			CreatedAt: rec.CreatedAt,
			Views:     rec.Views,
			URL:       s.viewURL(rec.ID),
		})
	}
	return items, nil
}

// ResolveView exchanges an image id for a short-lived presigned GET URL and
// bumps the view counter. The counter is best effort: a failed increment is
// logged and the view still succeeds.
func (s *Service) ResolveView(ctx context.Context, iid string) (string, error) {
	rec, err := s.store.Image(ctx, iid)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("fetch image: %w", err)
	}
	if rec.StorageKey == "" {
		return "", ErrCorruptRecord
	}

	url, err := s.objects.PresignGet(ctx, rec.StorageKey, s.getTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.store.IncrementViews(ctx, iid); err != nil {
		slog.Warn("view counter increment failed", "iid", iid, "error", err)
	}
	return url, nil
}

// Delete removes an image the caller owns. The object is deleted from storage
// first; only then does the metadata record and its index entry go, in one
// atomic batch. If the object delete fails the metadata stays intact, so the
// image remains visible and the delete can be retried.
func (s *Service) Delete(ctx context.Context, uid, iid string) error {
	rec, err := s.store.Image(ctx, iid)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("fetch image: %w", err)
	}
	if rec.OwnerID != uid {
		return ErrForbidden
	}
	if rec.StorageKey == "" {
		return ErrCorruptRecord
	}

	if err := s.objects.Delete(ctx, rec.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.store.DeleteImage(ctx, iid, uid); err != nil {
		// Object already gone; a retried delete heals the orphaned record.
		slog.Error("object deleted but metadata removal failed", "iid", iid, "key", rec.StorageKey, "error", err)
		return fmt.Errorf("delete image record: %w", err)
	}
	return nil
}

// viewURL points at this service's redirecting view endpoint, so gallery and
// confirm replies never embed a URL that can expire.
func (s *Service) viewURL(iid string) string {
	return s.publicBase + "/api/v1/image/" + iid
}

// newImageID returns a fresh id like "img_9c4a1e2b7f01".
func newImageID() string {
	u := uuid.New()
	return "img_" + hex.EncodeToString(u[:])[:12]
}
