package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func TestMigrationManager_UnsupportedDriver(t *testing.T) {
	_, err := NewMigrationManager(nil, "mysql", "", logrus.New())
	assert.Error(t, err)
}

func TestMigrationManager_SQLiteEmbedded(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	defer db.Close()

	manager, err := NewMigrationManager(db, "sqlite3", "", logrus.New())
	require.NoError(t, err)

	version, dirty, err := manager.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, manager.Up())
	require.NoError(t, manager.Up(), "second run is a no-op")

	version, _, err = manager.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.Exec(`INSERT INTO knowledge_chunks (id, title, content) VALUES ('1', 't', 'c')`)
	require.NoError(t, err)

	require.NoError(t, manager.Down())
	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='knowledge_chunks'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMigrationManager_Postgres(t *testing.T) {
	// 需要真实的数据库连接
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("Skipping migration test: TEST_DB_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	manager, err := NewMigrationManager(db, "postgres", "", logrus.New())
	require.NoError(t, err)

	require.NoError(t, manager.Up())
	var exists bool
	err = db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'knowledge_chunks')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, manager.Down())
}
