package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/inodb/vcf2csv/internal/dbload"
)

var _ dbload.RSSink = (*Store)(nil)

var rsColumns = []string{"chromosome", "position", "ref", "alt", "rs_number"}

// EnsureRSTable creates the rs-number table if it does not exist.
func (s *Store) EnsureRSTable(ctx context.Context, table string) error {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, rsTableDDL(table))
	return err
}

// AppendRSNumbers copies rows into table.
func (s *Store) AppendRSNumbers(ctx context.Context, table string, rows []dbload.RSNumber) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, rsColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Chrom, r.Pos, r.Ref, r.Alt, r.RSNumber); err != nil {
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

// IndexRSTable creates the position and rs-number indexes.
func (s *Store) IndexRSTable(ctx context.Context, table string) error {
	for _, stmt := range rsIndexDDL(table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func rsTableDDL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (chromosome TEXT, position BIGINT, ref TEXT, alt TEXT, rs_number TEXT)",
		pq.QuoteIdentifier(table))
}

func rsIndexDDL(table string) []string {
	t := pq.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (position, chromosome)",
			pq.QuoteIdentifier(table+"_position_chromosome_idx"), t),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (rs_number)",
			pq.QuoteIdentifier(table+"_rs_number_idx"), t),
	}
}
