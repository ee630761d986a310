package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigDataSource(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantDriver string
		wantErr    bool
	}{
		{"default sqlite", Config{Path: "data/ringi.db"}, DriverSQLite, false},
		{"sqlite without path", Config{Driver: DriverSQLite}, "", true},
		{"postgres", Config{Driver: DriverPostgres, DSN: "postgres://u:p@localhost/db"}, DriverPostgres, false},
		{"postgres without dsn", Config{Driver: DriverPostgres}, "", true},
		{"unknown", Config{Driver: "oracle"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := tt.cfg.dataSource()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.NotEmpty(t, dsn)
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			migrations, err := LoadMigrations(driver)
			require.NoError(t, err)
			require.Len(t, migrations, 2)
			assert.Equal(t, 1, migrations[0].Version)
			assert.Equal(t, "init", migrations[0].Name)
			assert.Contains(t, migrations[0].SQL, "workflow_instances")
			assert.Equal(t, 2, migrations[1].Version)
			assert.Equal(t, "steps_due_index", migrations[1].Name)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\n\nCREATE TABLE a (x INT);\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
}

func TestMigratorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "ringi.db")}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db, zap.NewNop())
	applied, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM display_counters").Scan(&n))
	assert.Equal(t, 0, n)
}
