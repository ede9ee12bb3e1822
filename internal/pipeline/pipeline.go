// Package pipeline drives a single streaming VCF to CSV conversion and
// persists the consequence and strain vocabularies when it completes.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vcf2csv/internal/convert"
	"github.com/inodb/vcf2csv/internal/output"
	"github.com/inodb/vcf2csv/internal/progress"
	"github.com/inodb/vcf2csv/internal/vcf"
	"github.com/inodb/vcf2csv/internal/vocab"
)

// ErrHeaderNotFound is returned when data lines appear before the "#CHROM"
// header, or the input has no header at all.
var ErrHeaderNotFound = errors.New("header not found")

// Config holds the inputs of one conversion run.
type Config struct {
	InputPath       string
	ConsequencePath string
	StrainPath      string
	OutputPath      string
	Verbose         bool

	// Window selects the sample columns. Zero value means DefaultSampleWindow.
	Window vcf.SampleWindow
	// ProgressInterval is the number of records between progress reports.
	ProgressInterval int
	// LineBytes is the assumed average data line length used for the
	// progress estimate.
	LineBytes int

	Logger *zap.Logger
	// Progress receives carriage-return progress lines when not verbose.
	// Nil disables them.
	Progress io.Writer
}

// Result summarizes a completed run.
type Result struct {
	Records         int
	Elapsed         time.Duration
	Consequences    int
	Strains         int
	NewConsequences int
	NewStrains      int
}

// ElapsedSeconds returns the wall-clock duration in whole seconds.
func (r *Result) ElapsedSeconds() int64 {
	return int64(r.Elapsed / time.Second)
}

// Run converts cfg.InputPath to cfg.OutputPath. All three input files are
// checked before the output is created. Vocabularies are saved only when the
// whole input converts successfully.
func Run(cfg Config) (*Result, error) {
	cfg.applyDefaults()
	logger := cfg.Logger
	start := time.Now()

	if _, err := os.Stat(cfg.InputPath); err != nil {
		return nil, fmt.Errorf("vcf file not found: %w", err)
	}
	if err := vocab.CheckReadable(cfg.ConsequencePath); err != nil {
		return nil, fmt.Errorf("consequence file: %w", err)
	}
	if err := vocab.CheckReadable(cfg.StrainPath); err != nil {
		return nil, fmt.Errorf("strain file: %w", err)
	}

	consequences, err := vocab.Load(cfg.ConsequencePath)
	if err != nil {
		return nil, err
	}
	consequences.SetLogger(logger.Named("consequences"))
	strains, err := vocab.Load(cfg.StrainPath)
	if err != nil {
		return nil, err
	}
	strains.SetLogger(logger.Named("strains"))

	logger.Debug("loaded vocabularies",
		zap.Int("consequences", consequences.Len()),
		zap.Int("strains", strains.Len()))
	for i, term := range consequences.Terms() {
		logger.Debug("found consequence", zap.String("term", term), zap.Int("id", i))
	}

	reader, err := vcf.Open(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out, err := output.Create(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	conv := convert.NewConverter(consequences, strains, cfg.Window)
	conv.SetLogger(logger)

	records, err := stream(reader, conv, output.NewCSVWriter(out), cfg)
	if err != nil {
		out.Abort()
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}

	result := &Result{
		Records:         records,
		Elapsed:         time.Since(start),
		Consequences:    consequences.Len(),
		Strains:         strains.Len(),
		NewConsequences: consequences.Added(),
		NewStrains:      strains.Added(),
	}

	logger.Info("finished parsing",
		zap.Int("records", records),
		zap.Int64("seconds", result.ElapsedSeconds()))

	logger.Info("writing consequences to file", zap.String("path", cfg.ConsequencePath))
	if err := consequences.Save(cfg.ConsequencePath); err != nil {
		return nil, err
	}
	logger.Info("writing strains to file", zap.String("path", cfg.StrainPath))
	if err := strains.Save(cfg.StrainPath); err != nil {
		return nil, err
	}

	return result, nil
}

// stream runs the header/record state machine and returns the number of
// records written.
func stream(reader *vcf.Reader, conv *convert.Converter, writer *output.CSVWriter, cfg Config) (int, error) {
	logger := cfg.Logger
	est := progress.New(progress.EstimateLines(reader.Size(), cfg.LineBytes), !cfg.Verbose)
	logger.Debug("estimated lines", zap.Int64("bytes", reader.Size()), zap.Int("lines", est.Total()))
	started := time.Now()
	count := 0

	for {
		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		switch vcf.Classify(line) {
		case vcf.LineMeta:
			continue
		case vcf.LineHeader:
			if conv.HasHeader() {
				logger.Warn("ignoring header line after data", zap.Int("line", reader.LineNumber()))
				continue
			}
			columns, err := conv.ResolveHeader(line, reader.LineNumber())
			if err != nil {
				return count, err
			}
			if err := writer.WriteHeader(columns[len(convert.MetadataColumns):]); err != nil {
				return count, fmt.Errorf("write header: %w", err)
			}
			continue
		}

		if !conv.HasHeader() {
			return count, fmt.Errorf("%w before data at line %d", ErrHeaderNotFound, reader.LineNumber())
		}

		row, err := conv.Transform(line, reader.LineNumber())
		if err != nil {
			return count, err
		}
		if err := writer.Write(row); err != nil {
			return count, fmt.Errorf("write row: %w", err)
		}
		count++

		if count%cfg.ProgressInterval == 0 {
			report(cfg, est.Report(count, time.Since(started)))
		}
	}

	if !conv.HasHeader() {
		return count, fmt.Errorf("%w in %s", ErrHeaderNotFound, cfg.InputPath)
	}
	if cfg.Progress != nil && !cfg.Verbose && count >= cfg.ProgressInterval {
		fmt.Fprintln(cfg.Progress)
	}

	if err := writer.Flush(); err != nil {
		return count, fmt.Errorf("flush output: %w", err)
	}
	return count, nil
}

func report(cfg Config, line string) {
	if cfg.Verbose {
		cfg.Logger.Debug(line)
		return
	}
	if cfg.Progress != nil {
		fmt.Fprintf(cfg.Progress, "\r%s     ", line)
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Window == (vcf.SampleWindow{}) {
		cfg.Window = vcf.DefaultSampleWindow
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = progress.DefaultInterval
	}
	if cfg.LineBytes <= 0 {
		cfg.LineBytes = progress.DefaultLineBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}
