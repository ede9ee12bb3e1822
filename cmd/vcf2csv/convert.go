package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/pipeline"
	"github.com/inodb/vcf2csv/internal/progress"
	"github.com/inodb/vcf2csv/internal/vcf"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [options] <input.vcf>",
		Short: "Convert a strain VCF file to CSV",
		Long: `Convert a strain VCF file (plain or gzip) to CSV.

Each data row becomes symbol,chromosome,position,"{consequence ids}" followed by
one genotype code per known strain: 0 homozygous reference, 1 homozygous
alternate, 2 heterozygous, -1 missing. New consequence terms and strains are
appended to the vocabulary files, which are rewritten when the run succeeds.`,
		Example: `  vcf2csv convert strains.vcf
  vcf2csv convert -c consequences.json -s strains.json -o output.csv strains.vcf.gz
  vcf2csv convert --samples-count 0 -o all-strains.csv.gz strains.vcf`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.StringP("consequence-file", "c", "consequences.json", "Consequence vocabulary file")
	f.StringP("strain-file", "s", "strains.json", "Strain vocabulary file")
	f.StringP("output", "o", "output.csv", "Output CSV file (gzip-compressed if it ends in .gz)")
	f.Int("samples-start", vcf.DefaultSampleWindow.Start, "First sample column")
	f.Int("samples-count", vcf.DefaultSampleWindow.Count, "Number of sample columns (0: up to the end of the header)")
	f.Int("progress-interval", progress.DefaultInterval, "Records between progress reports")

	return cmd
}

func runConvert(cmd *cobra.Command, input string) error {
	if err := bindFlags(cmd, map[string]string{
		"consequences":      "consequence-file",
		"strains":           "strain-file",
		"output":            "output",
		"samples.start":     "samples-start",
		"samples.count":     "samples-count",
		"progress.interval": "progress-interval",
	}); err != nil {
		return err
	}

	verbose := isVerbose(cmd)
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	cfg := pipeline.Config{
		InputPath:       input,
		ConsequencePath: viper.GetString("consequences"),
		StrainPath:      viper.GetString("strains"),
		OutputPath:      viper.GetString("output"),
		Verbose:         verbose,
		Window: vcf.SampleWindow{
			Start: viper.GetInt("samples.start"),
			Count: viper.GetInt("samples.count"),
		},
		ProgressInterval: viper.GetInt("progress.interval"),
		LineBytes:        viper.GetInt("progress.line_bytes"),
		Logger:           logger,
		Progress:         cmd.ErrOrStderr(),
	}

	logger.Debug("debug mode enabled",
		zap.String("vcf", cfg.InputPath),
		zap.String("consequences", cfg.ConsequencePath),
		zap.String("strains", cfg.StrainPath),
		zap.String("output", cfg.OutputPath))

	res, err := pipeline.Run(cfg)
	if err != nil {
		return err
	}

	printConvertSummary(cmd.OutOrStdout(), res, cfg.OutputPath)
	return nil
}

func printConvertSummary(w io.Writer, res *pipeline.Result, output string) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(w, "Finished parsing %s records in %d seconds\n", formatCount(res.Records), res.ElapsedSeconds())
	fmt.Fprintf(w, "  Consequences: %s (%s new)\n", formatCount(res.Consequences), formatCount(res.NewConsequences))
	fmt.Fprintf(w, "  Strains:      %s (%s new)\n", formatCount(res.Strains), formatCount(res.NewStrains))
	fmt.Fprintf(w, "  Output:       %s\n", output)
}

// bindFlags binds config keys to the flags of the running command. Commands
// share keys, so binding happens at run time rather than at construction.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func isVerbose(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug || viper.GetBool("verbose")
}
