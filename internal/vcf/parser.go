// Package vcf provides line-level VCF reading for the CSV converter.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// LineKind classifies a VCF line.
type LineKind int

const (
	// LineMeta is a "##" metadata line.
	LineMeta LineKind = iota
	// LineHeader is the single "#" column header line.
	LineHeader
	// LineData is a variant record.
	LineData
)

func (k LineKind) String() string {
	switch k {
	case LineMeta:
		return "meta"
	case LineHeader:
		return "header"
	default:
		return "data"
	}
}

// Classify returns the kind of a line with its newline already removed.
func Classify(line string) LineKind {
	if strings.HasPrefix(line, "##") {
		return LineMeta
	}
	if strings.HasPrefix(line, "#") {
		return LineHeader
	}
	return LineData
}

// Reader reads lines from a VCF file.
type Reader struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	size       int64
}

// Open opens a VCF file for reading.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat vcf file: %w", err)
	}

	r := &Reader{file: file, size: info.Size()}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read vcf file: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.reader = bufio.NewReaderSize(r.gzipReader, 1<<20)
	} else {
		r.reader = bufio.NewReaderSize(file, 1<<20)
	}

	return r, nil
}

// NewReader creates a Reader over an arbitrary stream. Size reports zero.
func NewReader(rd io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(rd)}
}

// Next returns the next non-empty line without its line terminator.
// Returns io.EOF when the input is exhausted.
func (r *Reader) Next() (string, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("read line %d: %w", r.lineNumber+1, err)
		}
		r.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return line, nil
		}
	}
}

// LineNumber returns the 1-based number of the last line returned by Next.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Size returns the on-disk byte length of the input, or zero for streams.
func (r *Reader) Size() int64 {
	return r.size
}

// Close closes the reader and underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
