// Package vocab provides append-only controlled vocabularies that keep a
// stable integer index for every term across runs.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Vocabulary is an ordered list of terms. The position of a term is its
// canonical index; entries are only ever appended.
type Vocabulary struct {
	terms  []string
	index  map[string]int
	added  int
	logger *zap.Logger
}

// New creates a vocabulary preloaded with terms.
// Repeated terms keep their list position but resolve to the first occurrence.
func New(terms ...string) *Vocabulary {
	v := &Vocabulary{
		terms:  make([]string, 0, len(terms)),
		index:  make(map[string]int, len(terms)),
		logger: zap.NewNop(),
	}
	for _, t := range terms {
		if _, ok := v.index[t]; !ok {
			v.index[t] = len(v.terms)
		}
		v.terms = append(v.terms, t)
	}
	return v
}

// SetLogger sets the logger used to report newly appended terms.
func (v *Vocabulary) SetLogger(l *zap.Logger) {
	v.logger = l
}

// IndexOf returns the index of term, appending it first if it is unknown.
// A new term always receives the index equal to the prior length.
func (v *Vocabulary) IndexOf(term string) int {
	if i, ok := v.index[term]; ok {
		return i
	}
	i := len(v.terms)
	v.terms = append(v.terms, term)
	v.index[term] = i
	v.added++
	v.logger.Debug("new vocabulary term", zap.String("term", term), zap.Int("index", i))
	return i
}

// Lookup returns the index of term without modifying the vocabulary.
func (v *Vocabulary) Lookup(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Added returns how many terms were appended since the vocabulary was created.
func (v *Vocabulary) Added() int {
	return v.added
}

// Terms returns a copy of the entries in index order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Load reads a vocabulary file. A file that cannot be opened yields an empty
// vocabulary, which is how a first run starts.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return New(), nil
	}
	defer f.Close()

	terms, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return New(terms...), nil
}

// Parse reads quoted, comma separated entries enclosed in brackets.
// Whitespace anywhere in the input is ignored.
func Parse(r io.Reader) ([]string, error) {
	var terms []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.Map(func(r rune) rune {
			switch {
			case unicode.IsSpace(r), r == '"', r == '[', r == ']':
				return -1
			}
			return r
		}, scanner.Text())

		for _, t := range strings.Split(line, ",") {
			if t != "" {
				terms = append(terms, t)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

// Format writes terms one per line, quoted and comma separated, inside
// brackets. The final entry carries no trailing comma.
func Format(w io.Writer, terms []string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for i, t := range terms {
		bw.WriteString("\n\t\"")
		bw.WriteString(t)
		bw.WriteString("\"")
		if i < len(terms)-1 {
			bw.WriteString(",")
		}
	}
	bw.WriteString("\n]\n")
	return bw.Flush()
}

// Save overwrites path with the full vocabulary. The file is written to a
// temporary sibling and renamed into place.
func (v *Vocabulary) Save(path string) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vocabulary file: %w", err)
	}

	if err := Format(f, v.terms); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write vocabulary file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vocabulary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename vocabulary file: %w", err)
	}
	v.logger.Debug("saved vocabulary", zap.String("path", filepath.Base(path)), zap.Int("terms", len(v.terms)))
	return nil
}

// CheckReadable reports an error when path exists but cannot be opened, or
// does not exist at all.
func CheckReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("vocabulary file not found: %s", path)
		}
		return fmt.Errorf("open vocabulary file: %w", err)
	}
	return f.Close()
}
