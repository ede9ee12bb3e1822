package convert

import (
	"github.com/inodb/vcf2csv/internal/vcf"
	"github.com/inodb/vcf2csv/internal/vocab"
)

// StrainMap maps a sample column's position within the window to the strain's
// canonical index in the registry.
type StrainMap []int

// ResolveStrains maps each sample name to its registry index, appending names
// the registry has not seen in header order.
func ResolveStrains(names []string, registry *vocab.Vocabulary) StrainMap {
	m := make(StrainMap, len(names))
	for i, name := range names {
		m[i] = registry.IndexOf(name)
	}
	return m
}

// ResolveHeader extracts the sample names of a "#CHROM" line within window and
// resolves them against registry.
func ResolveHeader(line string, lineNumber int, window vcf.SampleWindow, registry *vocab.Vocabulary) (StrainMap, error) {
	names, err := vcf.SampleNames(line, lineNumber, window)
	if err != nil {
		return nil, err
	}
	return ResolveStrains(names, registry), nil
}
