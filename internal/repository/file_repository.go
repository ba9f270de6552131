package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memo-server/internal/domain"
)

const tempPrefix = ".memo-"

type fileMemoRepository struct {
	dir string
}

// NewFileMemoRepository stores one file per memo in dir, named by id.
// The file's modification time is the memo's UpdatedAt.
func NewFileMemoRepository(dir string) (MemoRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memo directory: %w", err)
	}
	return &fileMemoRepository{dir: dir}, nil
}

func (r *fileMemoRepository) Exists(ctx context.Context, id string) (bool, error) {
	path, err := memoPath(r.dir, id, "")
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat memo: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

func (r *fileMemoRepository) FindByID(ctx context.Context, id string) (*domain.Memo, error) {
	path, err := memoPath(r.dir, id, "")
	if err != nil {
		return nil, domain.ErrMemoNotFound
	}
	return readMemoFile(path, id)
}

func (r *fileMemoRepository) Save(ctx context.Context, memo *domain.Memo) error {
	path, err := memoPath(r.dir, memo.ID, "")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, memo.Content, memo.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save memo: %w", err)
	}
	return nil
}

func (r *fileMemoRepository) Delete(ctx context.Context, id string) error {
	path, err := memoPath(r.dir, id, "")
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	return nil
}

func (r *fileMemoRepository) List(ctx context.Context) ([]*domain.Memo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}

	memos := make([]*domain.Memo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		memo, err := readMemoFile(filepath.Join(r.dir, e.Name()), e.Name())
		if errors.Is(err, domain.ErrMemoNotFound) {
			// removed between ReadDir and the read
			continue
		}
		if err != nil {
			return nil, err
		}
		memos = append(memos, memo)
	}

	return memos, nil
}

type fileBackupRepository struct {
	dir    string
	suffix string
}

// NewFileBackupRepository keeps backups in dir as <id><suffix>.
func NewFileBackupRepository(dir, suffix string) (BackupRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &fileBackupRepository{dir: dir, suffix: suffix}, nil
}

func (r *fileBackupRepository) SaveBackup(ctx context.Context, memo *domain.Memo) error {
	path, err := memoPath(r.dir, memo.ID, r.suffix)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, memo.Content, memo.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

func (r *fileBackupRepository) FindBackup(ctx context.Context, id string) (*domain.Memo, error) {
	path, err := memoPath(r.dir, id, r.suffix)
	if err != nil {
		return nil, domain.ErrMemoNotFound
	}
	return readMemoFile(path, id)
}

// memoPath refuses ids that are not a single plain path element.
func memoPath(dir, id, suffix string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") ||
		strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return "", domain.ErrInvalidMemoID
	}
	return filepath.Join(dir, id+suffix), nil
}

func readMemoFile(path, id string) (*domain.Memo, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memo: %w", err)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat memo: %w", err)
	}

	return &domain.Memo{
		ID:        id,
		Content:   string(content),
		UpdatedAt: info.ModTime(),
	}, nil
}

// writeFileAtomic writes content to a temp file in the target directory,
// stamps it with modTime and renames it over path.
func writeFileAtomic(path, content string, modTime time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(tmpName, modTime, modTime); err != nil {
			return err
		}
	}

	return os.Rename(tmpName, path)
}
