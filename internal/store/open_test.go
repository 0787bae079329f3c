package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/listingest/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		b, err := Open(ctx, config.StoreConfig{Driver: config.DriverMemory})
		require.NoError(t, err)
		defer b.Close()

		_, err = b.AddWorker(ctx, "a")
		require.NoError(t, err)
		workers, err := b.ListWorkers(ctx)
		require.NoError(t, err)
		assert.Len(t, workers, 1)
	})

	t.Run("sqlite creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "ingest.db")
		b, err := Open(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path})
		require.NoError(t, err)
		defer b.Close()

		assert.FileExists(t, path)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, config.StoreConfig{Driver: "mongo"})
		assert.ErrorContains(t, err, "mongo")
	})
}
