package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf2csv/internal/duckdb"
	"github.com/inodb/vcf2csv/internal/vocab"
)

// isolate gives each test a fresh viper and an empty home directory.
func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)
	color.NoColor = true
	return home
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatCount(tt.n))
	}
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	code, out, _ := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "vcf2csv version dev (none) built unknown\n", out)
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing input", []string{"convert"}},
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"convert", "--nope", "x.vcf"}},
		{"bad table", []string{"load", "--table", "1x", "out.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			code, _, stderr := execute(t, tt.args...)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, "Error: ")
		})
	}
}

func TestRun_ConvertMissingInput(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	code, _, stderr := execute(t, "convert", "-o", filepath.Join(dir, "out.csv"), filepath.Join(dir, "missing.vcf"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "vcf file not found")
}

func TestRun_ConvertThenLoad(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	consequences := filepath.Join(dir, "consequences.json")
	strains := filepath.Join(dir, "strains.json")
	output := filepath.Join(dir, "output.csv")
	db := filepath.Join(dir, "mice.duckdb")
	require.NoError(t, vocab.New().Save(consequences))
	require.NoError(t, vocab.New().Save(strains))

	code, out, stderr := execute(t, "convert", "-c", consequences, "-s", strains, "-o", output, findTestFile(t, "strains.vcf"))
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "Finished parsing 3 records")
	assert.Contains(t, out, "Consequences: 3 (3 new)")
	assert.Contains(t, out, "Strains:      52 (52 new)")

	code, out, stderr = execute(t, "load", "--db", db, "-c", consequences, "-s", strains, output)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "Loaded 3 rows into output")
	assert.Contains(t, out, "Total:   3 rows in table")

	code, out, _ = execute(t, "load", "--db", db, "-c", consequences, "-s", strains, output)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "already loaded")

	code, out, stderr = execute(t, "load", "history", "--db", db)
	require.Equal(t, ExitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "\toutput\t3 rows\t"+output), lines[0])

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.CountRows(context.Background(), "output")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRun_LoadUnknownDriver(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("symbol,chromosome,position,consequence\n"), 0644))

	code, _, stderr := execute(t, "load", "--driver", "oracle", csvPath)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, `unknown driver "oracle"`)
}

func TestRun_Vocab(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "consequences.json")
	require.NoError(t, vocab.New("missense_variant", "stop_gained").Save(path))

	code, out, _ := execute(t, "vocab", path)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "0\tmissense_variant\n1\tstop_gained\n", out)

	code, out, _ = execute(t, "vocab", path, "stop_gained")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "1\tstop_gained\n", out)

	code, _, stderr := execute(t, "vocab", path, "intron_variant")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, `"intron_variant" is not in`)

	code, _, stderr = execute(t, "vocab", path+".missing")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "vocabulary file not found")

	code, _, _ = execute(t, "vocab")
	assert.Equal(t, ExitUsage, code)
}

func TestRun_Genotypes(t *testing.T) {
	isolate(t)
	code, out, _ := execute(t, "genotypes")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "-1\tMISSING\n0\tHOMOZYGOUS_REFERENCE\n1\tHOMOZYGOUS_ALTERNATE\n2\tHETEROZYGOUS\n", out)
}

const rsSites = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"1\t3000100\trs27396282\tG\tA\t50\tPASS\t.\n" +
	"JH584299.1\t200\trs1\tC\tT\t50\tPASS\t.\n" +
	"X\t1500\t.\tC\tT\t50\tPASS\t.\n"

func TestRun_LoadRS(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "sites.vcf")
	db := filepath.Join(dir, "mice.duckdb")
	require.NoError(t, os.WriteFile(input, []byte(rsSites), 0644))

	code, out, stderr := execute(t, "load", "rs", "--db", db, input)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "Loaded 2 rs numbers into rs_numbers")
	assert.Contains(t, out, "Skipped: 1 sites")

	// Standard input, into a second table.
	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetArgs([]string{"load", "rs", "--db", db, "--table", "snps_rs", "-"})
	root.SetIn(strings.NewReader(rsSites))
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	viper.Reset()
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "Loaded 2 rs numbers into snps_rs")

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	var pos int64
	require.NoError(t, store.DB().QueryRow(`SELECT position FROM rs_numbers WHERE rs_number = 'rs27396282'`).Scan(&pos))
	assert.Equal(t, int64(3000100), pos)
	n, err := store.CountRows(context.Background(), "snps_rs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRun_LoadRSErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	code, _, _ := execute(t, "load", "rs", "--table", "rs-numbers", "x.vcf")
	assert.Equal(t, ExitUsage, code)

	code, _, stderr := execute(t, "load", "rs", "--db", filepath.Join(dir, "x.duckdb"), filepath.Join(dir, "missing.vcf"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "open vcf file")

	code, _, stderr = execute(t, "load", "history", "--db", filepath.Join(dir, "none.duckdb"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "database not found")
}

func TestRun_ConfigSetGet(t *testing.T) {
	home := isolate(t)

	code, out, _ := execute(t, "config", "set", "samples.count", "0")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, filepath.Join(home, ".vcf2csv.yaml"))

	viper.Reset()
	code, out, _ = execute(t, "config", "get", "samples.count")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "0", strings.TrimSpace(out))

	code, _, stderr := execute(t, "config", "get", "no.such.key")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "is not set")
}

func TestRun_ConfigSetWritesOnlyFileKeys(t *testing.T) {
	home := isolate(t)
	t.Setenv("POSTGRES_PASSWORD", "hunter2")
	t.Setenv("VCF2CSV_OUTPUT", "from-env.csv")
	cfgFile := filepath.Join(home, ".vcf2csv.yaml")

	code, _, stderr := execute(t, "config", "set", "strains", "mice.json")
	require.Equal(t, ExitSuccess, code, stderr)

	viper.Reset()
	code, _, stderr = execute(t, "config", "set", "load.driver", "postgres")
	require.Equal(t, ExitSuccess, code, stderr)

	data, err := os.ReadFile(cfgFile)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "strains: mice.json")
	assert.Contains(t, content, "driver: postgres")
	for _, absent := range []string{"hunter2", "password", "from-env.csv", "samples", "batch_size", "line_bytes", "sslmode"} {
		assert.NotContains(t, content, absent)
	}
}

func TestRun_ConfigShowMasksPassword(t *testing.T) {
	isolate(t)
	t.Setenv("POSTGRES_PASSWORD", "hunter2")

	code, out, _ := execute(t, "config")
	require.Equal(t, ExitSuccess, code)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "line_bytes: 2200")
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}
