package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vcf2csv/internal/genotype"
	"github.com/inodb/vcf2csv/internal/vocab"
)

func newVocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab <file> [term...]",
		Short: "List the entries of a consequence or strain vocabulary file",
		Long: `List the index and term of every entry of a vocabulary file. With terms
given, print only those entries; an unknown term is an error.`,
		Example: `  vcf2csv vocab consequences.json
  vcf2csv vocab strains.json C57BL_6J DBA_2J`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vocab.CheckReadable(args[0]); err != nil {
				return err
			}
			v, err := vocab.Load(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				for i, term := range v.Terms() {
					fmt.Fprintf(w, "%d\t%s\n", i, term)
				}
				return nil
			}
			for _, term := range args[1:] {
				i, ok := v.Lookup(term)
				if !ok {
					return fmt.Errorf("%q is not in %s", term, args[0])
				}
				fmt.Fprintf(w, "%d\t%s\n", i, term)
			}
			return nil
		},
	}
}

func newGenotypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genotypes",
		Short: "List the genotype codes written to the CSV",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range genotype.Codes {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", int(c), c.String())
			}
		},
	}
}
