// Package duckdb loads converted variant tables into a DuckDB database.
// Vocabularies are rewritten on every load, variant tables are appended to.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf2csv/internal/dbload"
)

// Store manages a DuckDB connection holding vocabularies and variant tables.
type Store struct {
	db   *sql.DB
	path string
}

var _ dbload.Sink = (*Store)(nil)
var _ dbload.LoadRecorder = (*Store)(nil)

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates the vocabulary and load history tables.
func (s *Store) ensureSchema() error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS consequences (id INTEGER, consequence VARCHAR)`,
		`CREATE TABLE IF NOT EXISTS strains (id INTEGER, strain VARCHAR)`,
		`CREATE TABLE IF NOT EXISTS loads (
			path VARCHAR,
			size BIGINT,
			mod_time BIGINT, -- unix nanoseconds
			table_name VARCHAR,
			row_count BIGINT,
			loaded_at TIMESTAMP
		)`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceVocabulary rewrites a vocabulary table; each term gets its index as id.
func (s *Store) ReplaceVocabulary(ctx context.Context, kind dbload.Vocabulary, terms []string) error {
	table, err := vocabularyTable(kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (id, "+kind.Column()+") VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, term := range terms {
		if _, err := stmt.ExecContext(ctx, int32(i), term); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// vocabulary returns the terms of a vocabulary table ordered by id.
func (s *Store) vocabulary(ctx context.Context, kind dbload.Vocabulary) ([]string, error) {
	table, err := vocabularyTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+kind.Column()+" FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		terms = append(terms, name)
	}
	return terms, rows.Err()
}

func vocabularyTable(kind dbload.Vocabulary) (string, error) {
	switch kind {
	case dbload.Consequences, dbload.Strains:
		return string(kind), nil
	}
	return "", fmt.Errorf("unknown vocabulary %q", kind)
}
