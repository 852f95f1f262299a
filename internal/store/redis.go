package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediagrab/api/internal/model"
)

// RedisStore keeps each record in a redis hash. Updates only write the
// fields they touch, so concurrent readers never see a record with
// unrelated fields reverted.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a store whose records expire after ttl (0 keeps
// them forever).
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
		now:   time.Now,
	}
}

func downloadKey(id string) string {
	return fmt.Sprintf("download:%s", id)
}

func (s *RedisStore) Insert(ctx context.Context, d *model.Download) error {
	key := downloadKey(d.ID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("download %s already exists", d.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeDownload(d))
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return model.NewError(model.KindRecordStoreFailed, "insert", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Download, error) {
	fields, err := s.redis.HGetAll(ctx, downloadKey(id)).Result()
	if err != nil {
		return nil, model.NewError(model.KindRecordStoreFailed, "get", err)
	}
	return decodeDownload(fields)
}

func (s *RedisStore) Update(ctx context.Context, id string, u model.DownloadUpdate) (*model.Download, error) {
	key := downloadKey(id)

	var (
		merged   *model.Download
		rejected error
	)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		d, err := decodeDownload(fields)
		if err != nil {
			rejected = err
			return err
		}
		if err := d.Apply(u, s.now()); err != nil {
			rejected = err
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, changedFields(u, d))
			return nil
		})
		if err != nil {
			return err
		}
		merged = d
		return nil
	}, key)

	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, model.NewError(model.KindRecordStoreFailed, "update", err)
	}
	return merged, nil
}

func encodeDownload(d *model.Download) map[string]interface{} {
	return map[string]interface{}{
		"id":            d.ID,
		"url":           d.URL,
		"format":        string(d.Format),
		"status":        string(d.Status),
		"stage":         string(d.Stage),
		"progress":      d.Progress,
		"file_path":     d.FilePath,
		"error_message": d.ErrorMessage,
		"created_at":    d.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":    d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// changedFields returns the hash fields an update touched, read back from
// the merged record d.
func changedFields(u model.DownloadUpdate, d *model.Download) map[string]interface{} {
	fields := map[string]interface{}{
		"updated_at": d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if u.Status != nil {
		fields["status"] = string(d.Status)
	}
	if u.Stage != nil {
		fields["stage"] = string(d.Stage)
		fields["progress"] = d.Progress
	}
	if u.Progress != nil {
		fields["progress"] = d.Progress
	}
	if u.FilePath != nil {
		fields["file_path"] = d.FilePath
	}
	if u.ErrorMessage != nil {
		fields["error_message"] = d.ErrorMessage
	}
	return fields
}

func decodeDownload(fields map[string]string) (*model.Download, error) {
	if len(fields) == 0 || fields["id"] == "" {
		return nil, model.ErrNotFound
	}

	progress, err := strconv.Atoi(fields["progress"])
	if err != nil {
		return nil, model.NewError(model.KindRecordStoreFailed, "decode", fmt.Errorf("invalid progress: %w", err))
	}

	d := &model.Download{
		ID:           fields["id"],
		URL:          fields["url"],
		Format:       model.Format(fields["format"]),
		Status:       model.DownloadStatus(fields["status"]),
		Stage:        model.Stage(fields["stage"]),
		Progress:     progress,
		FilePath:     fields["file_path"],
		ErrorMessage: fields["error_message"],
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])

	return d, nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
