package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// File is an output file that only appears at its final path once Commit
// succeeds. Paths ending in ".gz" are gzip-compressed.
type File struct {
	path    string
	tmpPath string
	f       *os.File
	gz      *gzip.Writer
	w       io.Writer
}

// Create opens a temporary sibling of path for writing.
func Create(path string) (*File, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	out := &File{path: path, tmpPath: tmpPath, f: f, w: f}
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		out.gz = gzip.NewWriter(f)
		out.w = out.gz
	}
	return out, nil
}

// Write implements io.Writer.
func (o *File) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

// Commit closes the file and renames it to its final path.
func (o *File) Commit() error {
	if o.gz != nil {
		if err := o.gz.Close(); err != nil {
			o.Abort()
			return fmt.Errorf("close gzip stream: %w", err)
		}
	}
	if err := o.f.Close(); err != nil {
		os.Remove(o.tmpPath)
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(o.tmpPath, o.path); err != nil {
		os.Remove(o.tmpPath)
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

// Abort closes and removes the temporary file.
func (o *File) Abort() {
	o.f.Close()
	os.Remove(o.tmpPath)
}
