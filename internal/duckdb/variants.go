package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/genotype"
)

const metadataColumnDefs = `symbol VARCHAR, chromosome VARCHAR, position BIGINT, consequence INTEGER[]`

// metadataColumns is the number of leading non-strain columns of a variant table.
const metadataColumns = 4

// columnKey folds a column name the way DuckDB compares identifiers.
func columnKey(name string) string {
	return strings.ToLower(name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func indexName(table string) string {
	return quoteIdent(table + "_position_chromosome_idx")
}

// EnsureVariantTable creates table with one INTEGER column per strain. An
// existing table gains the strain columns it lacks, defaulting to missing.
// Strain names differing only in case share one column.
func (s *Store) EnsureVariantTable(ctx context.Context, table string, strains []string) error {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return err
	}

	existing, err := s.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE %s (%s", quoteIdent(table), metadataColumnDefs)
		seen := map[string]bool{"symbol": true, "chromosome": true, "position": true, "consequence": true}
		for _, name := range strains {
			if seen[columnKey(name)] {
				continue
			}
			seen[columnKey(name)] = true
			fmt.Fprintf(&b, ", %s INTEGER DEFAULT %d", quoteIdent(name), genotype.Missing)
		}
		b.WriteString(")")
		if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
		return nil
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[columnKey(c)] = true
	}
	var missing []string
	for _, name := range strains {
		if !have[columnKey(name)] {
			have[columnKey(name)] = true
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	// Columns cannot be added while an index depends on the table.
	if _, err := s.db.ExecContext(ctx, "DROP INDEX IF EXISTS "+indexName(table)); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	for _, name := range missing {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER DEFAULT %d", quoteIdent(table), quoteIdent(name), genotype.Missing)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
	}
	return nil
}

// AppendVariants batch-inserts rows using the Appender API. Table columns
// absent from strains receive the missing code.
func (s *Store) AppendVariants(ctx context.Context, table string, strains []string, rows []dbload.Row) error {
	if len(rows) == 0 {
		return nil
	}

	columns, err := s.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	if len(columns) < metadataColumns {
		return fmt.Errorf("table %s does not exist", table)
	}

	// source[i] is the genotype index feeding strain column i, or -1.
	byName := make(map[string]int, len(strains))
	for i, name := range strains {
		if _, ok := byName[columnKey(name)]; !ok {
			byName[columnKey(name)] = i
		}
	}
	source := make([]int, len(columns)-metadataColumns)
	for i, col := range columns[metadataColumns:] {
		if j, ok := byName[columnKey(col)]; ok {
			source[i] = j
		} else {
			source[i] = -1
		}
	}

	return s.withAppender(ctx, table, func(appender *goduckdb.Appender) error {
		vals := make([]driver.Value, len(columns))
		for _, r := range rows {
			vals[0], vals[1], vals[2], vals[3] = r.Symbol, r.Chrom, r.Pos, r.Consequences
			for i, j := range source {
				if j >= 0 && j < len(r.Genotypes) {
					vals[metadataColumns+i] = r.Genotypes[j]
				} else {
					vals[metadataColumns+i] = int32(genotype.Missing)
				}
			}
			if err := appender.AppendRow(vals...); err != nil {
				return fmt.Errorf("append variant: %w", err)
			}
		}
		return nil
	})
}

// withAppender runs fn with an Appender on table and flushes it.
func (s *Store) withAppender(ctx context.Context, table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// IndexVariantTable indexes table on (position, chromosome).
func (s *Store) IndexVariantTable(ctx context.Context, table string) error {
	return s.createIndex(ctx, table, "position", "chromosome")
}

func (s *Store) createIndex(ctx context.Context, table string, columns ...string) error {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return err
	}
	name := quoteIdent(table + "_" + strings.Join(columns, "_") + "_idx")
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, quoteIdent(table), strings.Join(columns, ", "))
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if err := dbload.ValidateIdentifier(table); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(table)).Scan(&n)
	return n, err
}

// tableColumns returns the column names of table in declaration order, or
// nil when the table does not exist.
func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
