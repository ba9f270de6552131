package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memo-server/internal/domain"
	"memo-server/internal/repository"
)

// Memo is a transient handle over one persisted memo. It holds no content;
// every accessor reads the substrate again.
//
// Save and Patch write whatever they are given. Callers validate first.
type Memo struct {
	id      string
	repo    repository.MemoRepository
	backups repository.BackupRepository
	now     func() time.Time
}

func NewMemo(id string, repo repository.MemoRepository, backups repository.BackupRepository) *Memo {
	return &Memo{
		id:      id,
		repo:    repo,
		backups: backups,
		now:     time.Now,
	}
}

func (m *Memo) ID() string {
	return m.id
}

func (m *Memo) Exists(ctx context.Context) (bool, error) {
	return m.repo.Exists(ctx, m.id)
}

func (m *Memo) FirstLine(ctx context.Context) (string, error) {
	memo, err := m.repo.FindByID(ctx, m.id)
	if err != nil {
		return "", err
	}
	return memo.FirstLine(), nil
}

func (m *Memo) AllLines(ctx context.Context) (string, error) {
	memo, err := m.repo.FindByID(ctx, m.id)
	if err != nil {
		return "", err
	}
	return memo.Content, nil
}

func (m *Memo) ModifiedAt(ctx context.Context) (time.Time, error) {
	memo, err := m.repo.FindByID(ctx, m.id)
	if err != nil {
		return time.Time{}, err
	}
	return memo.UpdatedAt, nil
}

// Save creates or overwrites the memo and stamps it with the current time.
func (m *Memo) Save(ctx context.Context, content string) error {
	return m.repo.Save(ctx, &domain.Memo{
		ID:        m.id,
		Content:   content,
		UpdatedAt: m.now(),
	})
}

// Patch copies the current content into the backup slot, then saves content.
// The two writes are not atomic; a concurrent Patch may interleave.
func (m *Memo) Patch(ctx context.Context, content string) error {
	if err := m.backup(ctx); err != nil {
		return err
	}
	return m.Save(ctx, content)
}

// Delete copies the current content into the backup slot, then removes the memo.
// Deleting a memo that does not exist is a no-op.
func (m *Memo) Delete(ctx context.Context) error {
	if err := m.backup(ctx); err != nil {
		return err
	}
	return m.repo.Delete(ctx, m.id)
}

// backup overwrites the backup slot with the current content. Nothing is
// written when the memo has no primary record.
func (m *Memo) backup(ctx context.Context) error {
	current, err := m.repo.FindByID(ctx, m.id)
	if errors.Is(err, domain.ErrMemoNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read memo for backup: %w", err)
	}

	return m.backups.SaveBackup(ctx, &domain.Memo{
		ID:        m.id,
		Content:   current.Content,
		UpdatedAt: m.now(),
	})
}
