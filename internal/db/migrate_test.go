package db

import (
	"testing"
	"testing/fstest"

	"github.com/nft-tickets/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_scan_log.up.sql":  {Data: []byte("SELECT 1")},
		"0001_init.up.sql":      {Data: []byte("SELECT 1")},
		"0001_init.down.sql":    {Data: []byte("SELECT 1")},
		"README.md":             {Data: []byte("notes")},
		"0010_retention.up.sql": {Data: []byte("SELECT 1")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_scan_log.up.sql", "0010_retention.up.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_init.up.sql", files[0])
}
