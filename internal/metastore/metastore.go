// Package metastore defines the metadata store for users, image records and the
// per-user gallery index. Two backends implement it: Redis (production) and an
// embedded Badger store (local development and tests). Swap implementations by
// changing the concrete type injected at startup.
package metastore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a user or image record does not exist.
var ErrNotFound = errors.New("metastore: not found")

// ErrUsernameTaken is returned when registering a username that already exists.
var ErrUsernameTaken = errors.New("metastore: username already taken")

// User is a registered account.
type User struct {
	ID           string `json:"uid"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// ImageRecord is the durable metadata written by a confirmed upload. A record
// either does not exist or is fully populated; there is no partial state.
type ImageRecord struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_uid"`
	StorageKey string `json:"key"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime"`
	Private    bool   `json:"private"`
	CreatedAt  int64  `json:"created_at"`
	Views      int64  `json:"views"`
}

// Store is the persistence interface the services depend on.
//
// PutImage and DeleteImage must apply the image record and the owner's index
// entry as one atomic batch: an image id appears in a user's index if and only
// if the matching record exists. Callers never read-modify-write the index.
type Store interface {
	// CreateUser stores a new user. The username is reserved atomically;
	// ErrUsernameTaken is returned when it is already in use.
	CreateUser(ctx context.Context, u User) error
	// UserByName resolves a username to its account.
	UserByName(ctx context.Context, username string) (*User, error)

	// PutImage writes the record and appends it to the owner's index.
	PutImage(ctx context.Context, rec ImageRecord) error
	// Image fetches one record by id.
	Image(ctx context.Context, iid string) (*ImageRecord, error)
	// ImagesBatch fetches records for the given ids in one round trip. The
	// result is aligned with iids; entries are nil where no record exists.
	ImagesBatch(ctx context.Context, iids []string) ([]*ImageRecord, error)
	// UserImageIDs lists up to limit image ids for the user, newest first.
	UserImageIDs(ctx context.Context, uid string, limit int) ([]string, error)
	// DeleteImage removes the record and the owner's index entry together.
	DeleteImage(ctx context.Context, iid, uid string) error
	// IncrementViews bumps the view counter. Best effort; callers must not
	// fail a read path on its error.
	IncrementViews(ctx context.Context, iid string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
