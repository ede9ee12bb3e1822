package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/duckdb"
	"github.com/inodb/vcf2csv/internal/postgres"
	"github.com/inodb/vcf2csv/internal/vocab"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [options] <file.csv>",
		Short: "Load a converted CSV into DuckDB or PostgreSQL",
		Long: `Load a CSV produced by "vcf2csv convert" into a database.

The consequences and strains tables are replaced with the vocabulary files, the
variant table is created if needed (gaining any new strain columns) and the
rows are appended in batches. The table name defaults to the CSV file name.
PostgreSQL credentials are read from the postgres.* config keys or the
POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_HOST, POSTGRES_PORT and POSTGRES_DB
environment variables (a .env file in the working directory is honored).`,
		Example: `  vcf2csv load output.csv
  vcf2csv load --db mice.duckdb --table snps output.csv.gz
  vcf2csv load --driver postgres output.csv`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.String("driver", "duckdb", "Database driver: duckdb or postgres")
	f.String("db", "vcf2csv.duckdb", "DuckDB database file")
	f.String("dsn", "", "PostgreSQL connection URL (overrides postgres.* settings)")
	f.String("table", "", "Variant table name (default: derived from the CSV file name)")
	f.StringP("consequence-file", "c", "consequences.json", "Consequence vocabulary file")
	f.StringP("strain-file", "s", "strains.json", "Strain vocabulary file")
	f.Int("batch-size", dbload.DefaultBatchSize, "Rows per insert batch")
	f.Bool("force", false, "Load even if this file was already loaded into the table (DuckDB)")

	cmd.AddCommand(newLoadRSCmd())
	cmd.AddCommand(newLoadHistoryCmd())

	return cmd
}

// loadSink is a database both loaders can write to.
type loadSink interface {
	dbload.Sink
	dbload.RSSink
	CountRows(ctx context.Context, table string) (int64, error)
}

// loadTracker is implemented by sinks that remember loaded files.
type loadTracker interface {
	Loaded(ctx context.Context, path, table string) (bool, error)
}

func runLoad(cmd *cobra.Command, path string) error {
	if err := bindFlags(cmd, map[string]string{
		"load.driver":     "driver",
		"duckdb.path":     "db",
		"postgres.dsn":    "dsn",
		"consequences":    "consequence-file",
		"strains":         "strain-file",
		"load.batch_size": "batch-size",
	}); err != nil {
		return err
	}

	logger, err := newLogger(isVerbose(cmd))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	table, _ := cmd.Flags().GetString("table")
	if table == "" {
		if table, err = dbload.TableName(path); err != nil {
			return &usageError{cmd: cmd, err: fmt.Errorf("%w; use --table", err)}
		}
	} else if err := dbload.ValidateIdentifier(table); err != nil {
		return &usageError{cmd: cmd, err: err}
	}

	consequences, err := loadVocabulary(viper.GetString("consequences"), logger)
	if err != nil {
		return err
	}
	strains, err := loadVocabulary(viper.GetString("strains"), logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, closeSink, err := openSink(ctx, viper.GetString("load.driver"), logger)
	if err != nil {
		return err
	}
	defer closeSink()

	if force, _ := cmd.Flags().GetBool("force"); !force {
		if tracker, ok := sink.(loadTracker); ok {
			loaded, err := tracker.Loaded(ctx, path, table)
			if err != nil {
				return err
			}
			if loaded {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already loaded into %s (use --force to load again)\n", path, table)
				return nil
			}
		}
	}

	r, err := openCSV(path)
	if err != nil {
		return err
	}
	defer r.Close()

	sum, err := dbload.Load(ctx, sink, r, dbload.Options{
		Path:         path,
		Table:        table,
		BatchSize:    viper.GetInt("load.batch_size"),
		Consequences: consequences.Terms(),
		Strains:      strains.Terms(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	total, err := sink.CountRows(ctx, table)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}

	printLoadSummary(cmd.OutOrStdout(), sum, total)
	return nil
}

func loadVocabulary(path string, logger *zap.Logger) (*vocab.Vocabulary, error) {
	v, err := vocab.Load(path)
	if err != nil {
		return nil, err
	}
	if v.Len() == 0 {
		logger.Warn("vocabulary is empty", zap.String("path", path))
	}
	return v, nil
}

func openSink(ctx context.Context, driver string, logger *zap.Logger) (loadSink, func(), error) {
	switch strings.ToLower(driver) {
	case "duckdb":
		path := viper.GetString("duckdb.path")
		logger.Info("opening duckdb", zap.String("path", path))
		store, err := duckdb.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres", "postgresql":
		dsn := viper.GetString("postgres.dsn")
		if dsn == "" {
			dsn = postgres.Config{
				Host:     viper.GetString("postgres.host"),
				Port:     viper.GetInt("postgres.port"),
				User:     viper.GetString("postgres.user"),
				Password: viper.GetString("postgres.password"),
				Database: viper.GetString("postgres.database"),
				SSLMode:  viper.GetString("postgres.sslmode"),
			}.DSN()
		}
		logger.Info("connecting to postgres", zap.String("dsn", postgres.Redact(dsn)))
		store, err := postgres.Open(ctx, dsn, uint64(viper.GetInt("postgres.connect_retries")))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown driver %q (want duckdb or postgres)", driver)
}

// csvFile closes both the gzip stream and the file beneath it.
type csvFile struct {
	io.Reader
	closers []io.Closer
}

func (c *csvFile) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openCSV(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip csv: %w", err)
	}
	return &csvFile{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

func printLoadSummary(w io.Writer, sum *dbload.Summary, total int64) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(w, "Loaded %s rows into %s\n", formatCount(sum.Rows), sum.Table)
	fmt.Fprintf(w, "  Strains: %s\n", formatCount(sum.Strains))
	fmt.Fprintf(w, "  Total:   %s rows in table\n", formatCount(int(total)))
	if sum.Padded > 0 {
		color.New(color.FgYellow).Fprintf(w, "  Padded:  %s rows shorter than the header\n", formatCount(sum.Padded))
	}
}
