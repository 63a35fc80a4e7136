package metastore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	username:<name>     -> uid
//	user:<uid>          -> hash of User fields
//	img:<iid>           -> hash of ImageRecord fields
//	user:<uid>:images   -> sorted set of iids scored by created_at
func usernameKey(name string) string { return "username:" + name }
func userKey(uid string) string      { return "user:" + uid }
func imageKey(iid string) string     { return "img:" + iid }
func userImagesKey(uid string) string {
	return "user:" + uid + ":images"
}

// RedisStore implements Store on a Redis server. Multi-key writes go through
// MULTI/EXEC pipelines so the record and the gallery index move together.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedis connects to the Redis instance described by url
// (redis://[user:pass@]host:port/db).
func NewRedis(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{rdb: redis.NewClient(opt)}, nil
}

func (s *RedisStore) CreateUser(ctx context.Context, u User) error {
	ok, err := s.rdb.SetNX(ctx, usernameKey(u.Username), u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve username: %w", err)
	}
	if !ok {
		return ErrUsernameTaken
	}
	err = s.rdb.HSet(ctx, userKey(u.ID), map[string]interface{}{
		"uid":           u.ID,
		"username":      u.Username,
		"password_hash": u.PasswordHash,
		"created_at":    u.CreatedAt,
	}).Err()
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func (s *RedisStore) UserByName(ctx context.Context, username string) (*User, error) {
	uid, err := s.rdb.Get(ctx, usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve username: %w", err)
	}
	fields, err := s.rdb.HGetAll(ctx, userKey(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return &User{
		ID:           fields["uid"],
		Username:     fields["username"],
		PasswordHash: fields["password_hash"],
		CreatedAt:    parseInt(fields["created_at"]),
	}, nil
}

func (s *RedisStore) PutImage(ctx context.Context, rec ImageRecord) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, imageKey(rec.ID), imageHash(rec))
		pipe.ZAdd(ctx, userImagesKey(rec.OwnerID), redis.Z{
			Score:  float64(rec.CreatedAt),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store image record: %w", err)
	}
	return nil
}

func (s *RedisStore) Image(ctx context.Context, iid string) (*ImageRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, imageKey(iid)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch image record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return imageFromHash(fields), nil
}

func (s *RedisStore) ImagesBatch(ctx context.Context, iids []string) ([]*ImageRecord, error) {
	cmds := make([]*redis.MapStringStringCmd, len(iids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, iid := range iids {
			cmds[i] = pipe.HGetAll(ctx, imageKey(iid))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image batch: %w", err)
	}
	recs := make([]*ImageRecord, len(iids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		recs[i] = imageFromHash(fields)
	}
	return recs, nil
}

func (s *RedisStore) UserImageIDs(ctx context.Context, uid string, limit int) ([]string, error) {
	ids, err := s.rdb.ZRevRange(ctx, userImagesKey(uid), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch gallery index: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) DeleteImage(ctx context.Context, iid, uid string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, imageKey(iid))
		pipe.ZRem(ctx, userImagesKey(uid), iid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete image record: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementViews(ctx context.Context, iid string) error {
	return s.rdb.HIncrBy(ctx, imageKey(iid), "views", 1).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func imageHash(rec ImageRecord) map[string]interface{} {
	private := "0"
	if rec.Private {
		private = "1"
	}
	return map[string]interface{}{
		"id":         rec.ID,
		"owner_uid":  rec.OwnerID,
		"key":        rec.StorageKey,
		"filename":   rec.Filename,
		"mime":       rec.MimeType,
		"private":    private,
		"created_at": rec.CreatedAt,
		"views":      rec.Views,
	}
}

// imageFromHash is tolerant of missing or malformed fields; the services treat
// a record without a storage key as corrupt and surface that to the caller.
func imageFromHash(fields map[string]string) *ImageRecord {
	return &ImageRecord{
		ID:         fields["id"],
		OwnerID:    fields["owner_uid"],
		StorageKey: fields["key"],
		Filename:   fields["filename"],
		MimeType:   fields["mime"],
		Private:    fields["private"] == "1",
		CreatedAt:  parseInt(fields["created_at"]),
		Views:      parseInt(fields["views"]),
	}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
