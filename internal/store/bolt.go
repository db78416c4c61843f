package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"photogallery/internal/logging"
)

const (
	PhotosBucket = "photos" // Bucket name for image id to encoded image.
	MetaBucket   = "meta"   // Bucket name for the structure version marker.
	versionKey   = "version"

	// openTimeout bounds the wait for the file lock held by another process.
	openTimeout = time.Second
)

// Bolt stores images in a bbolt file, one key per image id.
type Bolt struct {
	db  *bolt.DB
	log *slog.Logger
}

// OpenBolt creates or opens the bbolt database at path.
func OpenBolt(path string, log *slog.Logger) (*Bolt, error) {
	log = logging.OrDiscard(log)
	log.Info("using image database", slog.String("backend", "bolt"), slog.String("path", path))

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout}) // 0600 permissions: user read/write
	if err != nil {
		return nil, unavailable("open bolt", fmt.Errorf("failed to open image database %s: %w", path, err))
	}

	if err := db.Update(migrateBolt); err != nil {
		db.Close()
		return nil, unavailable("open bolt", err)
	}

	return &Bolt{db: db, log: log}, nil
}

// migrateBolt creates the photos bucket the first time the file is opened at
// the current Version.
func migrateBolt(tx *bolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists([]byte(MetaBucket))
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", MetaBucket, err)
	}

	var current uint64
	if v := meta.Get([]byte(versionKey)); len(v) == 8 {
		current = binary.BigEndian.Uint64(v)
	}
	if current >= Version {
		return nil
	}

	if _, err := tx.CreateBucketIfNotExists([]byte(PhotosBucket)); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", PhotosBucket, err)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, Version)
	if err := meta.Put([]byte(versionKey), buf); err != nil {
		return fmt.Errorf("failed to write store version: %w", err)
	}
	return nil
}

// Put stores data under id, replacing any previous value.
func (b *Bolt) Put(ctx context.Context, id, data string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PhotosBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", PhotosBucket)
		}
		return bucket.Put([]byte(id), []byte(data))
	})
	if err != nil {
		return unavailable("put", fmt.Errorf("failed to save image %s: %w", id, err))
	}
	b.log.Debug("image saved", slog.String("id", id))
	return nil
}

// Delete removes id. A missing id is not an error.
func (b *Bolt) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PhotosBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", PhotosBucket)
		}
		// If the key doesn't exist, Delete does nothing and returns nil.
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return unavailable("delete", fmt.Errorf("failed to delete image %s: %w", id, err))
	}
	b.log.Debug("image deleted", slog.String("id", id))
	return nil
}

// ListAll returns every record in key order.
func (b *Bolt) ListAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	var records []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PhotosBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", PhotosBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			// Values are only valid inside the transaction; string() copies.
			records = append(records, Record{ID: string(k), Data: string(v)})
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list", fmt.Errorf("failed to list images: %w", err))
	}
	return records, nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
