package storage

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURLUsesPgxScheme(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/drive?sslmode=disable", migrationURL("postgres://u:p@db:5432/drive?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/drive", migrationURL("postgresql://u@db/drive"))
	assert.Equal(t, "pgx5://already", migrationURL("pgx5://already"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
