package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hokensim-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskStorageForTest(t *testing.T, dir string) *DiskStorage {
	t.Helper()
	d := NewDiskStorage(dir, 10)
	require.NoError(t, d.Init())
	return d
}

func TestDiskStoragePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	d := newDiskStorageForTest(t, dir)
	session := newTestSession("s1")
	require.NoError(t, d.CreateSession(session))
	require.NoError(t, d.AddMessage("s1", &model.Message{ID: "m1", Role: model.RoleUser, Content: "こんにちは"}))
	require.NoError(t, d.Close())

	// 別インスタンスで開き直してもファイルから復元できる
	d2 := newDiskStorageForTest(t, dir)
	got, err := d2.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "テストセッション", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "こんにちは", got.Messages[0].Content)
}

func TestDiskStorageListOrder(t *testing.T) {
	d := newDiskStorageForTest(t, t.TempDir())

	old := newTestSession("old")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, d.CreateSession(old))

	recent := newTestSession("recent")
	require.NoError(t, d.CreateSession(recent))

	sessions, err := d.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	// 更新が新しい順
	assert.Equal(t, "recent", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)
}

func TestDiskStorageDelete(t *testing.T) {
	d := newDiskStorageForTest(t, t.TempDir())

	require.NoError(t, d.CreateSession(newTestSession("s1")))
	require.NoError(t, d.DeleteSession("s1"))

	_, err := d.GetSession("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, d.DeleteSession("s1"), ErrSessionNotFound)
}

func TestDiskStorageBackup(t *testing.T) {
	dir := t.TempDir()
	d := newDiskStorageForTest(t, dir)

	require.NoError(t, d.CreateSession(newTestSession("s1")))
	require.NoError(t, d.Backup())

	entries, err := os.ReadDir(filepath.Join(dir, "backup"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	backed, err := os.ReadDir(filepath.Join(dir, "backup", entries[0].Name(), "sessions"))
	require.NoError(t, err)
	assert.Len(t, backed, 1)
}
