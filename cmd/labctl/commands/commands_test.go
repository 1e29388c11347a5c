package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"english_lab_go_backend/internal/database"
	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	prev := openDB
	openDB = func(string) (*gorm.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })
	return db
}

func seedLocal(t *testing.T, ids ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.db")
	kv, err := kvstore.NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer kv.Close()

	local := services.NewLocalSessionStore(kv, zerolog.Nop())
	for i, id := range ids {
		local.Save(context.Background(), models.Session{
			ID:        id,
			Timestamp: int64(1700000000000 + i),
			Topic:     "Topic " + id,
			Level:     models.LevelB1,
			Article:   "Article",
		})
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	db := useTestDB(t)
	path := seedLocal(t, "a", "b")

	out, err := run(t, "migrate", "--local", path, "--user", "sub-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated local sessions for sub-1")

	var count int64
	require.NoError(t, db.Model(&models.SessionRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	out, err = run(t, "migrate", "--local", path, "--user", "sub-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Already migrated")
}

func TestMigrateCommand_RequiresFlags(t *testing.T) {
	useTestDB(t)

	_, err := run(t, "migrate", "--user", "sub-1")
	assert.Error(t, err)
}

func TestSessionsListAndClear(t *testing.T) {
	useTestDB(t)
	path := seedLocal(t, "a", "b")

	out, err := run(t, "sessions", "list", "--local", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Topic a")
	assert.Contains(t, out, "Topic b")

	_, err = run(t, "migrate", "--local", path, "--user", "sub-1")
	require.NoError(t, err)

	out, err = run(t, "sessions", "list", "--user", "sub-1")
	require.NoError(t, err)
	assert.Contains(t, out, "MESSAGES")
	assert.Contains(t, out, "Topic b")

	_, err = run(t, "sessions", "clear", "--user", "sub-1")
	assert.ErrorContains(t, err, "--yes")

	out, err = run(t, "sessions", "clear", "--user", "sub-1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions cleared")

	out, err = run(t, "sessions", "list", "--user", "sub-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestSessionsList_UnknownUser(t *testing.T) {
	useTestDB(t)

	_, err := run(t, "sessions", "list", "--user", "nobody")
	assert.Error(t, err)
}
