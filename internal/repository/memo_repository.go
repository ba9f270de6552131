package repository

import (
	"context"

	"memo-server/internal/domain"
)

// MemoRepository is the primary memo substrate. FindByID returns
// domain.ErrMemoNotFound when no record exists; Delete of a missing
// record is not an error.
type MemoRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Memo, error)
	Save(ctx context.Context, memo *domain.Memo) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Memo, error)
}

// BackupRepository holds one backup per memo id. SaveBackup overwrites
// whatever was stored before.
type BackupRepository interface {
	SaveBackup(ctx context.Context, memo *domain.Memo) error
	FindBackup(ctx context.Context, id string) (*domain.Memo, error)
}
