// Package output writes converted rows as CSV.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vcf2csv/internal/convert"
)

// CSVWriter writes the denormalized CSV layout: metadata columns, a quoted
// consequence set and one integer genotype code per strain.
type CSVWriter struct {
	w   *bufio.Writer
	buf []byte
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{
		w:   bufio.NewWriterSize(w, 1<<20),
		buf: make([]byte, 0, 512),
	}
}

// WriteHeader writes the header line for the given strain names.
func (cw *CSVWriter) WriteHeader(strains []string) error {
	_, err := cw.w.WriteString(strings.Join(convert.HeaderColumns(strains), ",") + "\n")
	return err
}

// Write writes a single row.
func (cw *CSVWriter) Write(row *convert.Row) error {
	b := cw.buf[:0]
	b = append(b, row.Symbol...)
	b = append(b, ',')
	b = append(b, row.Chrom...)
	b = append(b, ',')
	b = append(b, row.Pos...)
	b = append(b, ",\""...)
	b = append(b, row.ConsequenceField()...)
	b = append(b, '"')
	for _, g := range row.Genotypes {
		b = append(b, ',')
		b = strconv.AppendInt(b, int64(g), 10)
	}
	b = append(b, '\n')
	cw.buf = b

	_, err := cw.w.Write(b)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	return cw.w.Flush()
}
