package duckdb

import (
	"context"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf2csv/internal/dbload"
)

var _ dbload.RSSink = (*Store)(nil)

// EnsureRSTable creates the rs-number table if it does not exist.
func (s *Store) EnsureRSTable(ctx context.Context, table string) error {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chromosome VARCHAR,
		position BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		rs_number VARCHAR
	)`, quoteIdent(table))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// AppendRSNumbers batch-inserts rows using the Appender API.
func (s *Store) AppendRSNumbers(ctx context.Context, table string, rows []dbload.RSNumber) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withAppender(ctx, table, func(appender *goduckdb.Appender) error {
		for _, r := range rows {
			if err := appender.AppendRow(r.Chrom, r.Pos, r.Ref, r.Alt, r.RSNumber); err != nil {
				return fmt.Errorf("append rs number: %w", err)
			}
		}
		return nil
	})
}

// IndexRSTable indexes table on (position, chromosome) and on rs_number.
func (s *Store) IndexRSTable(ctx context.Context, table string) error {
	if err := s.createIndex(ctx, table, "position", "chromosome"); err != nil {
		return err
	}
	return s.createIndex(ctx, table, "rs_number")
}
