package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRunAutoMigratesOutsidePostgres(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(conn))
	require.NoError(t, Run(conn))

	for _, model := range Models() {
		require.True(t, conn.Migrator().HasTable(model), "%T", model)
	}
	require.True(t, conn.Migrator().HasIndex(&chargeslipdomain.ChargeSlip{}, "idx_charge_slips_open_quotation"))
}

func TestEmbeddedMigrationsCoverEveryTable(t *testing.T) {
	up, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/0001_init.up.sql")
	require.NoError(t, err)
	down, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/0001_init.down.sql")
	require.NoError(t, err)

	require.Contains(t, string(up), chargeslipdomain.OpenQuotationIndexSQL)

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)

	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		table := stmt.Schema.Table
		require.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
		require.Contains(t, string(down), "DROP TABLE IF EXISTS "+table+";", table)

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" {
				continue
			}
			require.True(t, strings.Contains(string(up), "    "+field.DBName+" "), "%s.%s missing", table, field.DBName)
		}
	}
}
