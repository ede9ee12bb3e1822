package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed VCF column positions consumed by the converter.
const (
	colChrom = 0
	colPos   = 1
	colID    = 2
	colRef   = 3
	colAlt   = 4
	colInfo  = 7

	// Pipe-delimited segments of the annotation (CSQ/ANN) column.
	annConsequence = 1
	annSymbol      = 3
)

// SampleWindow selects the sample columns of a VCF line.
// Start is the 0-based index of the first sample column. Count is the number
// of sample columns; zero means every column from Start to the end of the
// header line.
type SampleWindow struct {
	Start int
	Count int
}

// DefaultSampleWindow skips the nine fixed VCF columns and reads 52 samples.
var DefaultSampleWindow = SampleWindow{Start: 9, Count: 52}

// Bounds returns the half-open column range [start, end) of the window for a
// header with n fields.
func (w SampleWindow) Bounds(n int) (start, end int, err error) {
	if w.Start < 0 || w.Count < 0 {
		return 0, 0, fmt.Errorf("invalid sample window start=%d count=%d", w.Start, w.Count)
	}
	end = w.Start + w.Count
	if w.Count == 0 {
		end = n
	}
	if end > n {
		return 0, 0, fmt.Errorf("expected at least %d columns, found %d", end, n)
	}
	if end <= w.Start {
		return 0, 0, fmt.Errorf("no sample columns after column %d", w.Start)
	}
	return w.Start, end, nil
}

// SampleNames returns the sample names of a "#CHROM" header line within the
// window.
func SampleNames(line string, lineNumber int, w SampleWindow) ([]string, error) {
	fields := strings.Split(line, "\t")
	start, end, err := w.Bounds(len(fields))
	if err != nil {
		return nil, &ParseError{Line: lineNumber, Message: "header: " + err.Error()}
	}
	return fields[start:end], nil
}

// Record holds the fields of a data line used for CSV conversion.
type Record struct {
	Chrom        string   // Chromosome name (e.g., "12", "chr12")
	Pos          string   // 1-based genomic position, as written in the file
	Symbol       string   // Gene or feature symbol from the annotation
	Consequences []string // Consequence terms in annotation order
	Samples      []string // Raw sample cells, one per window column
}

// ParseRecord extracts a Record from a data line. Sample cells are taken from
// columns [start, start+width); cells beyond the end of the line are empty.
func ParseRecord(line string, lineNumber, start, width int) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) <= colInfo {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", colInfo+1, len(fields)),
		}
	}

	pos := fields[colPos]
	if _, err := strconv.ParseInt(pos, 10, 64); err != nil {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[colPos]),
		}
	}

	ann := strings.Split(fields[colInfo], "|")
	if len(ann) <= annSymbol {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("expected at least %d annotation fields, found %d", annSymbol+1, len(ann)),
		}
	}

	rec := &Record{
		Chrom:        fields[colChrom],
		Pos:          pos,
		Symbol:       ann[annSymbol],
		Consequences: strings.Split(ann[annConsequence], "&"),
		Samples:      make([]string, width),
	}

	for i := 0; i < width && start+i < len(fields); i++ {
		rec.Samples[i] = fields[start+i]
	}

	return rec, nil
}

// Site is the identity of a variant: its location, alleles and dbSNP id.
type Site struct {
	Chrom string
	Pos   int64
	ID    string // empty when the ID column is "."
	Ref   string
	Alt   string
}

// ParseSite extracts the first five columns of a data line.
func ParseSite(line string, lineNumber int) (*Site, error) {
	fields := strings.SplitN(line, "\t", colAlt+2)
	if len(fields) <= colAlt {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", colAlt+1, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[colPos], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[colPos]),
		}
	}

	site := &Site{
		Chrom: fields[colChrom],
		Pos:   pos,
		ID:    fields[colID],
		Ref:   fields[colRef],
		Alt:   fields[colAlt],
	}
	if site.ID == "." {
		site.ID = ""
	}
	return site, nil
}
