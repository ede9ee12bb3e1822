package genotype

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		cell string
		want Code
	}{
		{"0/0", HomozygousReference},
		{"0|0", HomozygousReference},
		{"1/1", HomozygousAlternate},
		{"1|1", HomozygousAlternate},
		{"0/1", Heterozygous},
		{"0|1", Heterozygous},
		{"1/0", Heterozygous},
		{"1|0", Heterozygous},
		{"1|0:30:10,20", Heterozygous},
		{"0/0:99:40,0", HomozygousReference},
		{"./.:0:0,0", Missing},
		{".", Missing},
		{"", Missing},
		{"1/2", Missing},
		{"2|2", Missing},
		{"0", Missing},
		{"0/0/0", Missing},
		{"0-1", Missing},
		{":0/0", Missing},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.cell))
		})
	}
}

func TestDecode_PhasingIsIrrelevant(t *testing.T) {
	for _, pair := range []string{"00", "11", "01", "10"} {
		unphased := pair[:1] + "/" + pair[1:]
		phased := pair[:1] + "|" + pair[1:]
		assert.Equal(t, Decode(unphased), Decode(phased), pair)
	}
}

func TestDecode_UnknownInputNeverPanics(t *testing.T) {
	inputs := []string{strings.Repeat(":", 10), "\t", "0/", "/0", "|", "é|é", "0/0\n"}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			assert.Equal(t, Missing, Decode(in))
		})
	}
}

func TestCodeValues(t *testing.T) {
	assert.Equal(t, -1, int(Missing))
	assert.Equal(t, 0, int(HomozygousReference))
	assert.Equal(t, 1, int(HomozygousAlternate))
	assert.Equal(t, 2, int(Heterozygous))
	assert.Equal(t, "HETEROZYGOUS", Heterozygous.String())
	assert.Equal(t, "MISSING", Code(7).String())
}

func TestCodes(t *testing.T) {
	names := make([]string, len(Codes))
	for i, c := range Codes {
		names[i] = c.String()
	}
	assert.Equal(t, []string{"MISSING", "HOMOZYGOUS_REFERENCE", "HOMOZYGOUS_ALTERNATE", "HETEROZYGOUS"}, names)
}
