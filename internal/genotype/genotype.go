// Package genotype encodes diploid genotype calls as compact integer codes.
package genotype

import "strings"

// Code is the integer written to the output for one sample call.
type Code int8

const (
	Missing             Code = -1
	HomozygousReference Code = 0
	HomozygousAlternate Code = 1
	Heterozygous        Code = 2
)

// Codes lists every code in ascending order.
var Codes = []Code{Missing, HomozygousReference, HomozygousAlternate, Heterozygous}

// String returns the zygosity name of the code.
func (c Code) String() string {
	switch c {
	case HomozygousReference:
		return "HOMOZYGOUS_REFERENCE"
	case HomozygousAlternate:
		return "HOMOZYGOUS_ALTERNATE"
	case Heterozygous:
		return "HETEROZYGOUS"
	default:
		return "MISSING"
	}
}

// Decode maps a sample cell such as "0|1:30:10,20" to a Code. Only the text
// before the first colon is examined. Phased and unphased separators are
// equivalent. Anything outside the biallelic 0/1 calls is Missing.
func Decode(cell string) Code {
	gt := cell
	if i := strings.IndexByte(cell, ':'); i >= 0 {
		gt = cell[:i]
	}
	if len(gt) != 3 || (gt[1] != '/' && gt[1] != '|') {
		return Missing
	}

	switch gt[0:1] + gt[2:3] {
	case "00":
		return HomozygousReference
	case "11":
		return HomozygousAlternate
	case "01", "10":
		return Heterozygous
	}
	return Missing
}
