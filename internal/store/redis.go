package store

import (
	"context"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"photogallery/internal/logging"
)

const (
	redisPhotosKey  = "photogallery:photos"
	redisVersionKey = "photogallery:version"
)

// Redis stores images as fields of one redis hash.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

// OpenRedis connects with opts and writes the version marker if absent.
func OpenRedis(ctx context.Context, opts *redis.Options, log *slog.Logger) (*Redis, error) {
	log = logging.OrDiscard(log)
	log.Info("using image database", slog.String("backend", "redis"), slog.String("addr", opts.Addr))

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable("open redis", err)
	}
	if err := client.SetNX(ctx, redisVersionKey, Version, 0).Err(); err != nil {
		client.Close()
		return nil, unavailable("open redis", err)
	}
	return &Redis{client: client, log: log}, nil
}

// Put sets the hash field id to data.
func (r *Redis) Put(ctx context.Context, id, data string) error {
	if err := r.client.HSet(ctx, redisPhotosKey, id, data).Err(); err != nil {
		return unavailable("put", err)
	}
	r.log.Debug("image saved", slog.String("id", id))
	return nil
}

// Delete removes the hash field id; HDEL of a missing field is a no-op.
func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, redisPhotosKey, id).Err(); err != nil {
		return unavailable("delete", err)
	}
	r.log.Debug("image deleted", slog.String("id", id))
	return nil
}

// ListAll returns every record. Hash order is undefined, so records are
// sorted by id to keep the listing stable.
func (r *Redis) ListAll(ctx context.Context) ([]Record, error) {
	fields, err := r.client.HGetAll(ctx, redisPhotosKey).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	records := make([]Record, 0, len(fields))
	for id, data := range fields {
		records = append(records, Record{ID: id, Data: data})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
