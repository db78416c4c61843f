package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"photogallery/internal/logging"
)

const photosTable = "photos"

// SQLite stores images in a single sqlite table keyed by id.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens the sqlite database at dsn, which may be a file path or
// ":memory:".
func OpenSQLite(ctx context.Context, dsn string, log *slog.Logger) (*SQLite, error) {
	log = logging.OrDiscard(log)
	log.Info("using image database", slog.String("backend", "sqlite"), slog.String("path", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("open sqlite", err)
	}

	s := &SQLite{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, unavailable("open sqlite", err)
	}
	return s, nil
}

// migrate creates the photos table when PRAGMA user_version is below Version.
func (s *SQLite) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read store version: %w", err)
	}
	if current >= Version {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", photosTable, err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", Version)); err != nil {
		return fmt.Errorf("failed to write store version: %w", err)
	}
	return nil
}

// Put upserts data under id.
func (s *SQLite) Put(ctx context.Context, id, data string) error {
	query, args, err := sq.Insert(photosTable).
		Columns("id", "data").
		Values(id, data).
		Suffix("ON CONFLICT(id) DO UPDATE SET data = excluded.data").
		ToSql()
	if err != nil {
		return unavailable("put", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("put", fmt.Errorf("failed to save image %s: %w", id, err))
	}
	s.log.Debug("image saved", slog.String("id", id))
	return nil
}

// Delete removes id. A missing id affects no rows and is not an error.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	query, args, err := sq.Delete(photosTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return unavailable("delete", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("delete", fmt.Errorf("failed to delete image %s: %w", id, err))
	}
	s.log.Debug("image deleted", slog.String("id", id))
	return nil
}

// ListAll returns every record ordered by id.
func (s *SQLite) ListAll(ctx context.Context) ([]Record, error) {
	query, args, err := sq.Select("id", "data").From(photosTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, unavailable("list", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, unavailable("list", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return records, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
