package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf2csv/internal/dbload"
	"github.com/inodb/vcf2csv/internal/vcf"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "full",
			cfg:  Config{Host: "db", Port: 5432, User: "mice", Password: "p@ss word", Database: "strains", SSLMode: "require"},
			want: "postgres://mice:p%40ss%20word@db:5432/strains?sslmode=require",
		},
		{
			name: "defaults",
			cfg:  Config{Host: "localhost", Database: "strains"},
			want: "postgres://localhost/strains?sslmode=disable",
		},
		{
			name: "user without password",
			cfg:  Config{Host: "localhost", User: "mice", Database: "strains"},
			want: "postgres://mice@localhost/strains?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestRedact(t *testing.T) {
	dsn := Config{Host: "db", User: "mice", Password: "secret", Database: "strains"}.DSN()
	got := Redact(dsn)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "mice:")
	assert.Equal(t, "<invalid dsn>", Redact("postgres://%zz"))
}

func TestVariantTableDDL(t *testing.T) {
	stmts := variantTableDDL("mice", []string{"S1", "C57BL/6J", "S1"})
	require.Len(t, stmts, 3)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "mice" (symbol TEXT, chromosome TEXT, position BIGINT, consequence INTEGER[])`, stmts[0])
	assert.Equal(t, `ALTER TABLE "mice" ADD COLUMN IF NOT EXISTS "S1" SMALLINT DEFAULT -1`, stmts[1])
	assert.Equal(t, `ALTER TABLE "mice" ADD COLUMN IF NOT EXISTS "C57BL/6J" SMALLINT DEFAULT -1`, stmts[2])
}

func TestIndexDDL(t *testing.T) {
	stmts := indexDDL("mice")
	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "mice_position_chromosome_idx" ON "mice" (position, chromosome)`, stmts[0])
	assert.True(t, strings.HasSuffix(stmts[1], `USING GIN (consequence)`))
}

func TestRSNumberDDL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "rs_numbers" (chromosome TEXT, position BIGINT, ref TEXT, alt TEXT, rs_number TEXT)`,
		rsTableDDL("rs_numbers"))

	stmts := rsIndexDDL("rs_numbers")
	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "rs_numbers_position_chromosome_idx" ON "rs_numbers" (position, chromosome)`, stmts[0])
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "rs_numbers_rs_number_idx" ON "rs_numbers" (rs_number)`, stmts[1])
}

func TestCopyColumns(t *testing.T) {
	cols, source := copyColumns([]string{"S1", "S2", "S1", "S3"})
	assert.Equal(t, []string{"symbol", "chromosome", "position", "consequence", "S1", "S2", "S3"}, cols)
	assert.Equal(t, []int{0, 1, 3}, source)
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), "postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect postgres")
}

// TestStore_Integration runs against a live server when
// VCF2CSV_TEST_POSTGRES_DSN is set.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("VCF2CSV_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VCF2CSV_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn, DefaultConnectRetries)
	require.NoError(t, err)
	defer s.Close()

	const table = "vcf2csv_integration"
	_, err = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	require.NoError(t, err)
	t.Cleanup(func() { s.db.Exec("DROP TABLE IF EXISTS " + table) })

	csv := "symbol,chromosome,position,consequence,S1,S2\n" +
		"Xkr4,1,3000100,\"{0,1}\",2,-1\n" +
		"Gm1,X,1500,\"{}\",0,0\n"
	sum, err := dbload.Load(ctx, s, strings.NewReader(csv), dbload.Options{
		Table:        table,
		Consequences: []string{"missense_variant", "stop_gained"},
		Strains:      []string{"S1", "S2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rows)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM "+table+" WHERE consequence @> ARRAY[1]").Scan(&n))
	assert.Equal(t, 1, n)

	var name string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT consequence FROM consequences WHERE id = 1").Scan(&name))
	assert.Equal(t, "stop_gained", name)

	total, err := s.CountRows(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	const rsTable = "vcf2csv_integration_rs"
	_, err = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+rsTable)
	require.NoError(t, err)
	t.Cleanup(func() { s.db.Exec("DROP TABLE IF EXISTS " + rsTable) })

	sites := "#CHROM\tPOS\tID\tREF\tALT\n1\t3000100\trs27396282\tG\tA\n"
	rs, err := dbload.LoadRSNumbers(ctx, s, vcf.NewReader(strings.NewReader(sites)), dbload.RSOptions{Table: rsTable})
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Rows)

	var pos int64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT position FROM "+rsTable+" WHERE rs_number = $1", "rs27396282").Scan(&pos))
	assert.Equal(t, int64(3000100), pos)
}
