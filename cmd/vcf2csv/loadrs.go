package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/duckdb"
	"github.com/inodb/vcf2csv/internal/vcf"
)

func newLoadRSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rs [options] <file.vcf|->",
		Short: "Load the rs numbers of a VCF into a lookup table",
		Long: `Load the (chromosome, position, ref, alt, rs number) of every site in a VCF
into a table, so that variants can be looked up by their dbSNP id. Sites on
chromosomes with names longer than two characters are skipped. Use "-" to
read an uncompressed VCF from standard input.`,
		Example: `  vcf2csv load rs mgp.v5.snps.dbSNP142.vcf.gz
  zcat sites.vcf.gz | vcf2csv load rs --driver postgres -`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadRS(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.String("driver", "duckdb", "Database driver: duckdb or postgres")
	f.String("db", "vcf2csv.duckdb", "DuckDB database file")
	f.String("dsn", "", "PostgreSQL connection URL (overrides postgres.* settings)")
	f.String("table", dbload.DefaultRSTable, "rs-number table name")
	f.Int("batch-size", dbload.DefaultBatchSize, "Rows per insert batch")

	return cmd
}

func runLoadRS(cmd *cobra.Command, path string) error {
	if err := bindFlags(cmd, map[string]string{
		"load.driver":     "driver",
		"duckdb.path":     "db",
		"postgres.dsn":    "dsn",
		"load.batch_size": "batch-size",
	}); err != nil {
		return err
	}

	table, _ := cmd.Flags().GetString("table")
	if err := dbload.ValidateIdentifier(table); err != nil {
		return &usageError{cmd: cmd, err: err}
	}

	logger, err := newLogger(isVerbose(cmd))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	var reader *vcf.Reader
	if path == "-" {
		reader = vcf.NewReader(cmd.InOrStdin())
	} else {
		if reader, err = vcf.Open(path); err != nil {
			return err
		}
	}
	defer reader.Close()

	ctx := cmd.Context()
	sink, closeSink, err := openSink(ctx, viper.GetString("load.driver"), logger)
	if err != nil {
		return err
	}
	defer closeSink()

	sum, err := dbload.LoadRSNumbers(ctx, sink, reader, dbload.RSOptions{
		Table:     table,
		BatchSize: viper.GetInt("load.batch_size"),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	total, err := sink.CountRows(ctx, table)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}

	w := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(w, "Loaded %s rs numbers into %s\n", formatCount(sum.Rows), sum.Table)
	if sum.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped: %s sites on other contigs\n", formatCount(sum.Skipped))
	}
	fmt.Fprintf(w, "  Total:   %s rows in table\n", formatCount(int(total)))
	return nil
}

func newLoadHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the CSV files loaded into a DuckDB database",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadHistory(cmd)
		},
	}
	cmd.Flags().String("db", "vcf2csv.duckdb", "DuckDB database file")
	return cmd
}

func runLoadHistory(cmd *cobra.Command) error {
	if err := bindFlags(cmd, map[string]string{"duckdb.path": "db"}); err != nil {
		return err
	}
	path := viper.GetString("duckdb.path")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database not found: %w", err)
	}

	logger, err := newLogger(isVerbose(cmd))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("opening duckdb", zap.String("path", path))

	db, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	loads, err := db.Loads(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(loads) == 0 {
		fmt.Fprintf(w, "No loads recorded in %s\n", path)
		return nil
	}
	for _, l := range loads {
		fmt.Fprintf(w, "%s\t%s\t%s rows\t%s\n",
			l.LoadedAt.Format(time.DateTime), l.Table, formatCount(int(l.Rows)), l.File.Path)
	}
	return nil
}
