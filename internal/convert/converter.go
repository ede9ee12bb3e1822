package convert

import (
	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/genotype"
	"github.com/inodb/vcf2csv/internal/vcf"
	"github.com/inodb/vcf2csv/internal/vocab"
)

// Transform builds a Row from a parsed record. Consequence terms are resolved
// against consequences, appending unseen terms; a term repeated within the
// record is emitted once. The genotype slice is reset to registrySize Missing
// codes before the sample cells are written at their mapped positions; dst is
// reused when it has enough capacity.
func Transform(rec *vcf.Record, consequences *vocab.Vocabulary, strains StrainMap, registrySize int, dst []genotype.Code) *Row {
	row := &Row{
		Symbol:       rec.Symbol,
		Chrom:        rec.Chrom,
		Pos:          rec.Pos,
		Consequences: make([]int, 0, len(rec.Consequences)),
	}

	for _, term := range rec.Consequences {
		if term == "" {
			continue
		}
		idx := consequences.IndexOf(term)
		if !containsInt(row.Consequences, idx) {
			row.Consequences = append(row.Consequences, idx)
		}
	}

	if cap(dst) < registrySize {
		dst = make([]genotype.Code, registrySize)
	}
	dst = dst[:registrySize]
	for i := range dst {
		dst[i] = genotype.Missing
	}
	for col, strain := range strains {
		if col < len(rec.Samples) && strain < registrySize {
			dst[strain] = genotype.Decode(rec.Samples[col])
		}
	}
	row.Genotypes = dst

	return row
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Converter holds the per-run state shared by header resolution and record
// transformation: both vocabularies, the sample window and the strain map of
// the current header.
type Converter struct {
	consequences *vocab.Vocabulary
	strains      *vocab.Vocabulary
	window       vcf.SampleWindow
	strainMap    StrainMap
	genotypes    []genotype.Code
	logger       *zap.Logger
}

// NewConverter creates a converter over the given vocabularies.
func NewConverter(consequences, strains *vocab.Vocabulary, window vcf.SampleWindow) *Converter {
	return &Converter{
		consequences: consequences,
		strains:      strains,
		window:       window,
		logger:       zap.NewNop(),
	}
}

// SetLogger sets the logger for header resolution messages.
func (c *Converter) SetLogger(l *zap.Logger) {
	c.logger = l
}

// HasHeader reports whether a header line has been resolved.
func (c *Converter) HasHeader() bool {
	return c.strainMap != nil
}

// ResolveHeader resolves a "#CHROM" line and returns the output header columns.
func (c *Converter) ResolveHeader(line string, lineNumber int) ([]string, error) {
	before := c.strains.Len()
	m, err := ResolveHeader(line, lineNumber, c.window, c.strains)
	if err != nil {
		return nil, err
	}
	c.strainMap = m

	terms := c.strains.Terms()
	c.logger.Debug("resolved header",
		zap.Int("line", lineNumber),
		zap.Int("samples", len(m)),
		zap.Int("new_strains", len(terms)-before),
		zap.Int("strains", len(terms)))

	return HeaderColumns(terms), nil
}

// Transform converts a data line. The returned row's genotype slice is reused
// by the next call.
func (c *Converter) Transform(line string, lineNumber int) (*Row, error) {
	rec, err := vcf.ParseRecord(line, lineNumber, c.window.Start, len(c.strainMap))
	if err != nil {
		return nil, err
	}

	row := Transform(rec, c.consequences, c.strainMap, c.strains.Len(), c.genotypes)
	c.genotypes = row.Genotypes
	return row, nil
}
