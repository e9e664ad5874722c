package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestOpenSQLiteWithDiskBlobs(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "helpdesk.db"), RunMigrations: true},
		Blob:   config.BlobConfig{Backend: config.BlobBackendDisk, Dir: filepath.Join(dir, "blobs")},
	}
	ctx := context.Background()

	stores, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, config.StoreDriverSQLite, stores.Driver())
	assert.True(t, stores.MigrateOnStart())
	require.NoError(t, stores.Migrate(ctx))

	require.Len(t, stores.Checks, 1)
	assert.NoError(t, stores.Checks[0].Ping(ctx))

	account := &domain.Account{Name: "a", Email: "a@example.com", PasswordHash: "x", Role: domain.RoleMember, Active: true}
	require.NoError(t, stores.Accounts.Create(ctx, account))
	assert.NotZero(t, account.ID)

	locator, err := stores.Blobs.Put(ctx, []byte("bytes"))
	require.NoError(t, err)
	data, err := stores.Blobs.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
}

func TestOpenRejectsRedisBlobsWithoutRedis(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: ":memory:"},
		Blob:   config.BlobConfig{Backend: config.BlobBackendRedis},
	}
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
