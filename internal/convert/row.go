// Package convert turns VCF header and data lines into denormalized CSV rows
// keyed by stable consequence and strain indices.
package convert

import (
	"strconv"
	"strings"

	"github.com/inodb/vcf2csv/internal/genotype"
)

// MetadataColumns are the leading columns of every output row.
var MetadataColumns = []string{"symbol", "chromosome", "position", "consequence"}

// Row is one output record.
type Row struct {
	Symbol       string
	Chrom        string
	Pos          string
	Consequences []int           // consequence indices, first-seen order
	Genotypes    []genotype.Code // one code per strain, in registry order
}

// ConsequenceField encodes the consequence indices as "{c1,c2,...}".
func (r *Row) ConsequenceField() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, c := range r.Consequences {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	sb.WriteByte('}')
	return sb.String()
}

// HeaderColumns returns the output header: metadata columns followed by every
// known strain in registry order.
func HeaderColumns(strains []string) []string {
	cols := make([]string, 0, len(MetadataColumns)+len(strains))
	cols = append(cols, MetadataColumns...)
	return append(cols, strains...)
}
