// File: storage/sqlite.go
// Package storage persists GPS records.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/momentics/hioload-gps/api"
)

// ErrDatabaseMissing is returned by OpenSQLite when the file does not exist
// and schema creation was not requested.
var ErrDatabaseMissing = errors.New("database file does not exist")

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS GPSDATA (
	device_id INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	lat       REAL    NOT NULL,
	lon       REAL    NOT NULL
)`
	insertSQL = `INSERT INTO GPSDATA (device_id, timestamp, lat, lon) VALUES (?, ?, ?, ?)`
)

// SQLiteOptions controls how the database is opened.
type SQLiteOptions struct {
	// CreateSchema creates the file and the GPSDATA table when missing.
	CreateSchema bool
	// BusyTimeoutMs is passed as the sqlite busy_timeout pragma. Zero keeps the driver default.
	BusyTimeoutMs int
}

// SQLiteStore is an api.RecordStore writing one row per record.
type SQLiteStore struct {
	db   *sql.DB
	stmt *sql.Stmt
}

var _ api.RecordStore = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if !opts.CreateSchema {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, path)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("ping sqlite %s: %w", path, err), db.Close())
	}
	if opts.CreateSchema {
		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return nil, multierr.Append(fmt.Errorf("create schema: %w", err), db.Close())
		}
	}
	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("prepare insert: %w", err), db.Close())
	}
	return &SQLiteStore{db: db, stmt: stmt}, nil
}

// uriPathEscaper escapes the characters that end or alter the path part of an sqlite URI.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// sqliteDSN builds a file: URI for path, which sqlite decodes back to the literal file name.
func sqliteDSN(path string, opts SQLiteOptions) string {
	dsn := "file:" + uriPathEscaper.Replace(path)
	if opts.BusyTimeoutMs > 0 {
		dsn += fmt.Sprintf("?_pragma=busy_timeout(%d)", opts.BusyTimeoutMs)
	}
	return dsn
}

// StoreRecord inserts rec as a single statement.
func (s *SQLiteStore) StoreRecord(ctx context.Context, rec api.Record) error {
	if _, err := s.stmt.ExecContext(ctx, rec.DeviceID, int64(rec.Timestamp), rec.Lat, rec.Lon); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Records returns every stored row in insertion order.
func (s *SQLiteStore) Records(ctx context.Context) ([]api.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, timestamp, lat, lon FROM GPSDATA ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []api.Record
	for rows.Next() {
		var (
			rec api.Record
			ts  int64
		)
		if err := rows.Scan(&rec.DeviceID, &ts, &rec.Lat, &rec.Lon); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = uint64(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the prepared statement and the database.
func (s *SQLiteStore) Close() error {
	return multierr.Combine(s.stmt.Close(), s.db.Close())
}
