package duckdb

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// LoadRecord is one entry of the load history.
type LoadRecord struct {
	File     FileFingerprint
	Table    string
	Rows     int64
	LoadedAt time.Time
}

// RecordLoad stores the fingerprint of a loaded CSV file.
func (s *Store) RecordLoad(ctx context.Context, path, table string, rows int) error {
	fp, err := StatFile(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO loads (path, size, mod_time, table_name, row_count, loaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fp.Path, fp.Size, fp.ModTime.UnixNano(), table, int64(rows), time.Now())
	return err
}

// Loads returns the load history, oldest first.
func (s *Store) Loads(ctx context.Context) ([]LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, size, mod_time, table_name, row_count, loaded_at FROM loads ORDER BY loaded_at`)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	var out []LoadRecord
	for rows.Next() {
		var r LoadRecord
		var modTime int64
		if err := rows.Scan(&r.File.Path, &r.File.Size, &modTime, &r.Table, &r.Rows, &r.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		r.File.ModTime = time.Unix(0, modTime)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Loaded reports whether the file at path, unchanged since it was last
// loaded into table, is already in the history.
func (s *Store) Loaded(ctx context.Context, path, table string) (bool, error) {
	fp, err := StatFile(path)
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM loads WHERE path = ? AND size = ? AND mod_time = ? AND table_name = ?`,
		fp.Path, fp.Size, fp.ModTime.UnixNano(), table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query loads: %w", err)
	}
	return n > 0, nil
}
