package dbload

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/vcf"
)

// DefaultRSTable is the table queried for rs-number lookups.
const DefaultRSTable = "rs_numbers"

// maxChromLength drops scaffolds and unplaced contigs; chromosome names of
// the strain panels are "1".."19", "X", "Y" and "MT".
const maxChromLength = 2

// RSNumber maps a variant site to its dbSNP reference SNP id.
type RSNumber struct {
	Chrom    string
	Pos      int64
	Ref      string
	Alt      string
	RSNumber string // empty when the site has no id
}

// RSSink is a database that can receive an rs-number table.
type RSSink interface {
	// EnsureRSTable creates the rs-number table if needed.
	EnsureRSTable(ctx context.Context, table string) error
	// AppendRSNumbers appends rows to the rs-number table.
	AppendRSNumbers(ctx context.Context, table string, rows []RSNumber) error
	// IndexRSTable creates the position and rs-number indexes.
	IndexRSTable(ctx context.Context, table string) error
}

// RSOptions configures an rs-number load.
type RSOptions struct {
	Table     string // DefaultRSTable when empty
	BatchSize int
	Logger    *zap.Logger
}

// RSSummary describes a finished rs-number load.
type RSSummary struct {
	Table   string
	Rows    int
	Skipped int // sites on chromosomes with names longer than two characters
}

// LoadRSNumbers streams the sites of a VCF into the rs-number table of sink.
func LoadRSNumbers(ctx context.Context, sink RSSink, r *vcf.Reader, opts RSOptions) (*RSSummary, error) {
	if opts.Table == "" {
		opts.Table = DefaultRSTable
	}
	if err := ValidateIdentifier(opts.Table); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := sink.EnsureRSTable(ctx, opts.Table); err != nil {
		return nil, fmt.Errorf("create table %s: %w", opts.Table, err)
	}

	sum := &RSSummary{Table: opts.Table}
	batch := make([]RSNumber, 0, min(opts.BatchSize, 4096))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.AppendRSNumbers(ctx, opts.Table, batch); err != nil {
			return fmt.Errorf("append rows: %w", err)
		}
		sum.Rows += len(batch)
		logger.Info("uploaded rows", zap.String("table", opts.Table), zap.Int("rows", sum.Rows))
		batch = batch[:0]
		return nil
	}

	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if vcf.Classify(line) != vcf.LineData {
			continue
		}

		site, err := vcf.ParseSite(line, r.LineNumber())
		if err != nil {
			return nil, err
		}
		if len(site.Chrom) > maxChromLength {
			sum.Skipped++
			continue
		}
		batch = append(batch, RSNumber{
			Chrom:    site.Chrom,
			Pos:      site.Pos,
			Ref:      site.Ref,
			Alt:      site.Alt,
			RSNumber: site.ID,
		})
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if err := sink.IndexRSTable(ctx, opts.Table); err != nil {
		return nil, fmt.Errorf("index table %s: %w", opts.Table, err)
	}
	if sum.Skipped > 0 {
		logger.Debug("skipped sites on long chromosome names", zap.Int("sites", sum.Skipped))
	}
	return sum, nil
}
