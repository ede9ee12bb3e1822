// Package dbload reads a converted CSV back and loads it, together with the
// consequence and strain vocabularies, into a database.
package dbload

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/convert"
	"github.com/inodb/vcf2csv/internal/genotype"
)

// DefaultBatchSize is the number of rows appended per batch.
const DefaultBatchSize = 100000

// Vocabulary names a vocabulary table.
type Vocabulary string

const (
	Consequences Vocabulary = "consequences"
	Strains      Vocabulary = "strains"
)

// Column returns the name of the term column of the vocabulary table.
func (v Vocabulary) Column() string {
	switch v {
	case Consequences:
		return "consequence"
	case Strains:
		return "strain"
	}
	return ""
}

// Row is one variant row ready for insertion.
type Row struct {
	Symbol       string
	Chrom        string
	Pos          int64
	Consequences []int32
	Genotypes    []int32 // aligned with the strain names of the load
}

// Sink is a database that can receive a converted dataset.
type Sink interface {
	// ReplaceVocabulary overwrites a vocabulary table with terms; the id of
	// each term is its index.
	ReplaceVocabulary(ctx context.Context, kind Vocabulary, terms []string) error
	// EnsureVariantTable creates the variant table if needed and adds any
	// strain column it lacks.
	EnsureVariantTable(ctx context.Context, table string, strains []string) error
	// AppendVariants appends rows whose genotypes follow strains.
	AppendVariants(ctx context.Context, table string, strains []string, rows []Row) error
	// IndexVariantTable creates the lookup indexes of the variant table.
	IndexVariantTable(ctx context.Context, table string) error
}

// LoadRecorder is implemented by sinks that keep a history of loads.
type LoadRecorder interface {
	RecordLoad(ctx context.Context, path, table string, rows int) error
}

// Options configures a load.
type Options struct {
	Path         string // CSV path, recorded by LoadRecorder sinks
	Table        string
	BatchSize    int
	Consequences []string
	Strains      []string
	Logger       *zap.Logger
}

// Summary describes a finished load.
type Summary struct {
	Table   string
	Rows    int
	Strains int
	Padded  int // rows shorter than the header, filled with missing codes
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier reports whether name can be used as a table name.
func ValidateIdentifier(name string) error {
	if !identifierRE.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// TableName derives a table name from a CSV path: the base name up to the
// first '.', with '-' replaced by '_'.
func TableName(path string) (string, error) {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	name := strings.ReplaceAll(base, "-", "_")
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return name, nil
}

// ParseConsequenceField parses "{0,1}" into its indices.
func ParseConsequenceField(s string) ([]int32, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("invalid consequence set %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []int32{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]int32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid consequence id %q", p)
		}
		out[i] = int32(n)
	}
	return out, nil
}

// Load streams the CSV in r into sink.
func Load(ctx context.Context, sink Sink, r io.Reader, opts Options) (*Summary, error) {
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

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	meta := len(convert.MetadataColumns)
	if len(head) < meta || strings.Join(head[:meta], ",") != strings.Join(convert.MetadataColumns, ",") {
		return nil, fmt.Errorf("unexpected csv header %q", strings.Join(head, ","))
	}
	strains := append([]string(nil), head[meta:]...)

	if err := sink.ReplaceVocabulary(ctx, Consequences, opts.Consequences); err != nil {
		return nil, fmt.Errorf("write consequences: %w", err)
	}
	if err := sink.ReplaceVocabulary(ctx, Strains, opts.Strains); err != nil {
		return nil, fmt.Errorf("write strains: %w", err)
	}
	if err := sink.EnsureVariantTable(ctx, opts.Table, strains); err != nil {
		return nil, fmt.Errorf("create table %s: %w", opts.Table, err)
	}

	sum := &Summary{Table: opts.Table, Strains: len(strains)}
	batch := make([]Row, 0, min(opts.BatchSize, 4096))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.AppendVariants(ctx, opts.Table, strains, batch); err != nil {
			return fmt.Errorf("append rows: %w", err)
		}
		sum.Rows += len(batch)
		logger.Info("uploaded rows", zap.String("table", opts.Table), zap.Int("rows", sum.Rows))
		batch = batch[:0]
		return nil
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		row, padded, err := parseRow(rec, len(strains))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if padded {
			sum.Padded++
		}
		batch = append(batch, row)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if err := sink.IndexVariantTable(ctx, opts.Table); err != nil {
		return nil, fmt.Errorf("index table %s: %w", opts.Table, err)
	}
	if rec, ok := sink.(LoadRecorder); ok && opts.Path != "" {
		if err := rec.RecordLoad(ctx, opts.Path, opts.Table, sum.Rows); err != nil {
			return nil, fmt.Errorf("record load: %w", err)
		}
	}

	return sum, nil
}

// parseRow converts one CSV record. Rows with fewer genotype cells than
// strains are padded with the missing code.
func parseRow(rec []string, strains int) (Row, bool, error) {
	meta := len(convert.MetadataColumns)
	if len(rec) < meta {
		return Row{}, false, fmt.Errorf("expected at least %d fields, found %d", meta, len(rec))
	}
	cells := rec[meta:]
	if len(cells) > strains {
		return Row{}, false, fmt.Errorf("%d genotype fields for %d strains", len(cells), strains)
	}

	pos, err := strconv.ParseInt(rec[2], 10, 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("invalid position %q", rec[2])
	}
	csq, err := ParseConsequenceField(rec[3])
	if err != nil {
		return Row{}, false, err
	}

	row := Row{
		Symbol:       rec[0],
		Chrom:        rec[1],
		Pos:          pos,
		Consequences: csq,
		Genotypes:    make([]int32, strains),
	}
	for i := range row.Genotypes {
		row.Genotypes[i] = int32(genotype.Missing)
	}
	for i, c := range cells {
		n, err := strconv.ParseInt(c, 10, 8)
		if err != nil {
			return Row{}, false, fmt.Errorf("invalid genotype code %q", c)
		}
		row.Genotypes[i] = int32(n)
	}
	return row, len(cells) < strains, nil
}
