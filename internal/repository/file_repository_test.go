package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"memo-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileRepos(t *testing.T) (MemoRepository, BackupRepository, string, string) {
	t.Helper()
	memoDir := filepath.Join(t.TempDir(), "memos")
	backupDir := filepath.Join(t.TempDir(), "memos_backup")

	memos, err := NewFileMemoRepository(memoDir)
	require.NoError(t, err)
	backups, err := NewFileBackupRepository(backupDir, ".bak")
	require.NoError(t, err)

	return memos, backups, memoDir, backupDir
}

func TestFileMemoRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo, _, dir, _ := newFileRepos(t)
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "title\nbody", UpdatedAt: updated}))

	raw, err := os.ReadFile(filepath.Join(dir, "m1"))
	require.NoError(t, err)
	assert.Equal(t, "title\nbody", string(raw))

	memo, err := repo.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", memo.ID)
	assert.Equal(t, "title\nbody", memo.Content)
	assert.True(t, memo.UpdatedAt.Equal(updated), "mtime %v, want %v", memo.UpdatedAt, updated)

	exists, err := repo.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileMemoRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo, _, _, _ := newFileRepos(t)

	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "a much longer first version\n"}))
	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "short"}))

	memo, err := repo.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "short", memo.Content)
}

func TestFileMemoRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo, _, _, _ := newFileRepos(t)

	exists, err := repo.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrMemoNotFound)

	assert.NoError(t, repo.Delete(ctx, "nope"))
}

func TestFileMemoRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _, dir, _ := newFileRepos(t)

	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "x"}))
	require.NoError(t, repo.Delete(ctx, "m1"))

	_, err := os.Stat(filepath.Join(dir, "m1"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileMemoRepository_List(t *testing.T) {
	ctx := context.Background()
	repo, _, dir, _ := newFileRepos(t)

	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "a", Content: "A\n"}))
	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "b", Content: "B\n"}))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0o644))

	memos, err := repo.List(ctx)
	require.NoError(t, err)

	got := map[string]string{}
	for _, m := range memos {
		got[m.ID] = m.Content
	}
	assert.Equal(t, map[string]string{"a": "A\n", "b": "B\n"}, got)
}

func TestFileMemoRepository_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	repo, _, dir, _ := newFileRepos(t)

	for _, id := range []string{"../escape", "a/b", "..", ".hidden", ""} {
		err := repo.Save(ctx, &domain.Memo{ID: id, Content: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidMemoID, "id %q", id)

		_, err = repo.FindByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrMemoNotFound, "id %q", id)
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileBackupRepository_SingleSlot(t *testing.T) {
	ctx := context.Background()
	_, backups, _, backupDir := newFileRepos(t)

	require.NoError(t, backups.SaveBackup(ctx, &domain.Memo{ID: "m1", Content: "first"}))
	require.NoError(t, backups.SaveBackup(ctx, &domain.Memo{ID: "m1", Content: "second"}))

	raw, err := os.ReadFile(filepath.Join(backupDir, "m1.bak"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(raw))

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	backup, err := backups.FindBackup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", backup.Content)

	_, err = backups.FindBackup(ctx, "other")
	assert.ErrorIs(t, err, domain.ErrMemoNotFound)
}
