// Package postgres loads converted variant tables into PostgreSQL using
// COPY FROM STDIN.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/cenkalti/backoff"
	"github.com/lib/pq"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/genotype"
)

// Config holds connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the connection URL for cfg.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}

// Store is a PostgreSQL database receiving converted datasets.
type Store struct {
	db *sql.DB
}

var _ dbload.Sink = (*Store)(nil)

// DefaultConnectRetries is the number of extra connection attempts made
// while the server is starting.
const DefaultConnectRetries = 5

// Open connects to dsn, retrying the handshake with exponential backoff up
// to retries times, and creates the vocabulary tables.
func Open(ctx context.Context, dsn string, retries uint64) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, policy); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, table := range []dbload.Vocabulary{dbload.Consequences, dbload.Strains} {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, %s TEXT NOT NULL)",
			pq.QuoteIdentifier(string(table)), pq.QuoteIdentifier(table.Column()))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceVocabulary rewrites a vocabulary table in one transaction.
func (s *Store) ReplaceVocabulary(ctx context.Context, kind dbload.Vocabulary, terms []string) error {
	if kind != dbload.Consequences && kind != dbload.Strains {
		return fmt.Errorf("unknown vocabulary %q", kind)
	}
	table := string(kind)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, "id", kind.Column()))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i, term := range terms {
		if _, err := stmt.ExecContext(ctx, i, term); err != nil {
			stmt.Close()
			return fmt.Errorf("copy %s: %w", table, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("copy %s: %w", table, err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureVariantTable creates table and adds any strain column it lacks.
func (s *Store) EnsureVariantTable(ctx context.Context, table string, strains []string) error {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return err
	}
	for _, stmt := range variantTableDDL(table, strains) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// AppendVariants copies rows into table.
func (s *Store) AppendVariants(ctx context.Context, table string, strains []string, rows []dbload.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cols, source := copyColumns(strains)
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	vals := make([]any, len(cols))
	for _, r := range rows {
		vals[0], vals[1], vals[2], vals[3] = r.Symbol, r.Chrom, r.Pos, pq.Array(r.Consequences)
		for i, j := range source {
			if j < len(r.Genotypes) {
				vals[4+i] = r.Genotypes[j]
			} else {
				vals[4+i] = int32(genotype.Missing)
			}
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("copy rows: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// IndexVariantTable creates the position and consequence indexes.
func (s *Store) IndexVariantTable(ctx context.Context, table string) error {
	for _, stmt := range indexDDL(table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+pq.QuoteIdentifier(table)).Scan(&n)
	return n, err
}

// variantTableDDL returns the statements creating table with the metadata
// columns and one SMALLINT column per strain.
func variantTableDDL(table string, strains []string) []string {
	t := pq.QuoteIdentifier(table)
	stmts := []string{fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (symbol TEXT, chromosome TEXT, position BIGINT, consequence INTEGER[])", t)}
	seen := make(map[string]bool, len(strains))
	for _, name := range strains {
		if seen[name] {
			continue
		}
		seen[name] = true
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s SMALLINT DEFAULT %d",
			t, pq.QuoteIdentifier(name), int(genotype.Missing)))
	}
	return stmts
}

func indexDDL(table string) []string {
	t := pq.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (position, chromosome)",
			pq.QuoteIdentifier(table+"_position_chromosome_idx"), t),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (consequence)",
			pq.QuoteIdentifier(table+"_consequence_idx"), t),
	}
}

// copyColumns returns the COPY column list and, per strain column, the
// genotype index feeding it. Repeated strain names keep their first position.
func copyColumns(strains []string) ([]string, []int) {
	cols := []string{"symbol", "chromosome", "position", "consequence"}
	var source []int
	seen := make(map[string]bool, len(strains))
	for i, name := range strains {
		if seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, name)
		source = append(source, i)
	}
	return cols, source
}

// Redact returns dsn with its password masked, for logging.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	return u.Redacted()
}
