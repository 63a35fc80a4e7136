package metastore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on an embedded Badger database. It exists so
// the service runs without external infrastructure: a data directory in dev,
// fully in memory in tests.
//
// The gallery index is kept as one key per image under
// idx:<uid>:<8-byte big-endian created_at><iid>, so a reverse scan over the
// prefix yields ids newest first, matching the sorted-set ordering of the
// Redis backend.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger opens the database at path, or an in-memory instance when path is
// empty.
func NewBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{slog.Default()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func bUsernameKey(name string) []byte { return []byte("username:" + name) }
func bUserKey(uid string) []byte      { return []byte("user:" + uid) }
func bImageKey(iid string) []byte     { return []byte("img:" + iid) }

func bIndexPrefix(uid string) []byte { return []byte("idx:" + uid + ":") }

func bIndexKey(uid string, createdAt int64, iid string) []byte {
	prefix := bIndexPrefix(uid)
	key := make([]byte, 0, len(prefix)+8+len(iid))
	key = append(key, prefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(createdAt))
	return append(key, iid...)
}

func (s *BadgerStore) CreateUser(ctx context.Context, u User) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(bUsernameKey(u.Username))
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(bUsernameKey(u.Username), []byte(u.ID)); err != nil {
			return err
		}
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return txn.Set(bUserKey(u.ID), data)
	})
	// Two racing registrations for one name conflict on the username key;
	// the loser is equivalent to having arrived second.
	if errors.Is(err, badger.ErrConflict) {
		return ErrUsernameTaken
	}
	if err != nil && !errors.Is(err, ErrUsernameTaken) {
		return fmt.Errorf("store user: %w", err)
	}
	return err
}

func (s *BadgerStore) UserByName(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bUsernameKey(username))
		if err != nil {
			return err
		}
		uid, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(bUserKey(string(uid)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &u, nil
}

func (s *BadgerStore) PutImage(ctx context.Context, rec ImageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode image record: %w", err)
	}
	// Re-confirming an id must replace its index entry, not add a second
	// one, so an existing record's entry is dropped before the new write.
	update := func(txn *badger.Txn) error {
		item, err := txn.Get(bImageKey(rec.ID))
		if err == nil {
			var old ImageRecord
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &old)
			}); verr == nil && old.CreatedAt != rec.CreatedAt {
				if derr := txn.Delete(bIndexKey(old.OwnerID, old.CreatedAt, old.ID)); derr != nil {
					return derr
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(bImageKey(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(bIndexKey(rec.OwnerID, rec.CreatedAt, rec.ID), []byte(rec.ID))
	}
	err = s.db.Update(update)
	for attempts := 0; errors.Is(err, badger.ErrConflict) && attempts < 3; attempts++ {
		err = s.db.Update(update)
	}
	if err != nil {
		return fmt.Errorf("store image record: %w", err)
	}
	return nil
}

func (s *BadgerStore) Image(ctx context.Context, iid string) (*ImageRecord, error) {
	var rec ImageRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bImageKey(iid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch image record: %w", err)
	}
	return &rec, nil
}

func (s *BadgerStore) ImagesBatch(ctx context.Context, iids []string) ([]*ImageRecord, error) {
	recs := make([]*ImageRecord, len(iids))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, iid := range iids {
			item, err := txn.Get(bImageKey(iid))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec ImageRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			recs[i] = &rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image batch: %w", err)
	}
	return recs, nil
}

func (s *BadgerStore) UserImageIDs(ctx context.Context, uid string, limit int) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := bIndexPrefix(uid)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(ids) < limit; it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(val))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch gallery index: %w", err)
	}
	return ids, nil
}

func (s *BadgerStore) DeleteImage(ctx context.Context, iid, uid string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(bImageKey(iid))
		if err != nil {
			return err
		}
		var rec ImageRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		if err := txn.Delete(bImageKey(iid)); err != nil {
			return err
		}
		return txn.Delete(bIndexKey(uid, rec.CreatedAt, iid))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete image record: %w", err)
	}
	return nil
}

func (s *BadgerStore) IncrementViews(ctx context.Context, iid string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(bImageKey(iid))
		if err != nil {
			return err
		}
		var rec ImageRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.Views++
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(bImageKey(iid), data)
	})
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("metastore: badger database is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through slog. Badger's info
// output is chatty, so it lands at debug level.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
