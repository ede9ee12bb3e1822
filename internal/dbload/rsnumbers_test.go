package dbload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf2csv/internal/vcf"
)

type memoryRSSink struct {
	tables  []string
	rows    map[string][]RSNumber
	batches int
	indexed []string
}

func (m *memoryRSSink) EnsureRSTable(_ context.Context, table string) error {
	m.tables = append(m.tables, table)
	return nil
}

func (m *memoryRSSink) AppendRSNumbers(_ context.Context, table string, rows []RSNumber) error {
	if m.rows == nil {
		m.rows = map[string][]RSNumber{}
	}
	m.batches++
	m.rows[table] = append(m.rows[table], rows...)
	return nil
}

func (m *memoryRSSink) IndexRSTable(_ context.Context, table string) error {
	m.indexed = append(m.indexed, table)
	return nil
}

const sitesVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"1\t3000100\trs27396282\tG\tA\t50\tPASS\t.\n" +
	"JH584299.1\t200\trs1\tC\tT\t50\tPASS\t.\n" +
	"X\t1500\t.\tC\tT,G\t50\tPASS\t.\n" +
	"MT\t9348\trs3\tG\tA\t50\tPASS\t.\n"

func TestLoadRSNumbers(t *testing.T) {
	sink := &memoryRSSink{}

	sum, err := LoadRSNumbers(context.Background(), sink, vcf.NewReader(strings.NewReader(sitesVCF)), RSOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, &RSSummary{Table: DefaultRSTable, Rows: 3, Skipped: 1}, sum)
	assert.Equal(t, []string{DefaultRSTable}, sink.tables)
	assert.Equal(t, []string{DefaultRSTable}, sink.indexed)
	assert.Equal(t, 2, sink.batches)
	assert.Equal(t, []RSNumber{
		{Chrom: "1", Pos: 3000100, Ref: "G", Alt: "A", RSNumber: "rs27396282"},
		{Chrom: "X", Pos: 1500, Ref: "C", Alt: "T,G"},
		{Chrom: "MT", Pos: 9348, Ref: "G", Alt: "A", RSNumber: "rs3"},
	}, sink.rows[DefaultRSTable])
}

func TestLoadRSNumbers_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vcf     string
		table   string
		message string
	}{
		{"bad table", sitesVCF, "rs-numbers", "invalid table name"},
		{"short line", "#CHROM\tPOS\n1\t100\trs1\n", "", "expected at least 5 columns"},
		{"bad position", "1\tabc\trs1\tA\tG\n", "", "invalid position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memoryRSSink{}
			_, err := LoadRSNumbers(context.Background(), sink, vcf.NewReader(strings.NewReader(tt.vcf)), RSOptions{Table: tt.table})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, sink.indexed)
		})
	}

	var pe *vcf.ParseError
	_, err := LoadRSNumbers(context.Background(), &memoryRSSink{}, vcf.NewReader(strings.NewReader("#CHROM\n1\tx\trs1\tA\tG\n")), RSOptions{})
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
}
