package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memo-server/internal/domain"
)

const (
	memoTable   = "memo"
	backupTable = "memo_backup"
)

// EnsureSchema creates the memo and backup tables. The DDL and the
// $n placeholders used below are accepted by both PostgreSQL and SQLite.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{memoTable, backupTable} {
		_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    memo_id TEXT PRIMARY KEY,
    memo_content TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`, table))
		if err != nil {
			return fmt.Errorf("failed to create %s table: %w", table, err)
		}
	}
	return nil
}

type sqlMemoRepository struct {
	db *sql.DB
}

func NewSQLMemoRepository(db *sql.DB) MemoRepository {
	return &sqlMemoRepository{db: db}
}

func (r *sqlMemoRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+memoTable+" WHERE memo_id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check memo: %w", err)
	}
	return exists, nil
}

func (r *sqlMemoRepository) FindByID(ctx context.Context, id string) (*domain.Memo, error) {
	return findRow(ctx, r.db, memoTable, id)
}

func (r *sqlMemoRepository) Save(ctx context.Context, memo *domain.Memo) error {
	if err := upsertRow(ctx, r.db, memoTable, memo); err != nil {
		return fmt.Errorf("failed to save memo: %w", err)
	}
	return nil
}

func (r *sqlMemoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM "+memoTable+" WHERE memo_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	return nil
}

func (r *sqlMemoRepository) List(ctx context.Context) ([]*domain.Memo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT memo_id, memo_content, updated_at FROM "+memoTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}
	defer rows.Close()

	var memos []*domain.Memo
	for rows.Next() {
		var m domain.Memo
		if err := rows.Scan(&m.ID, &m.Content, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memo: %w", err)
		}
		memos = append(memos, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}

	return memos, nil
}

type sqlBackupRepository struct {
	db *sql.DB
}

func NewSQLBackupRepository(db *sql.DB) BackupRepository {
	return &sqlBackupRepository{db: db}
}

func (r *sqlBackupRepository) SaveBackup(ctx context.Context, memo *domain.Memo) error {
	if err := upsertRow(ctx, r.db, backupTable, memo); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

func (r *sqlBackupRepository) FindBackup(ctx context.Context, id string) (*domain.Memo, error) {
	return findRow(ctx, r.db, backupTable, id)
}

func findRow(ctx context.Context, db *sql.DB, table, id string) (*domain.Memo, error) {
	var m domain.Memo
	err := db.QueryRowContext(ctx,
		"SELECT memo_id, memo_content, updated_at FROM "+table+" WHERE memo_id = $1", id,
	).Scan(&m.ID, &m.Content, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find memo: %w", err)
	}
	return &m, nil
}

// upsertRow stores updated_at in UTC; the column carries no zone and
// lib/pq reads it back as UTC.
func upsertRow(ctx context.Context, db *sql.DB, table string, memo *domain.Memo) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO "+table+" (memo_id, memo_content, updated_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (memo_id) DO UPDATE SET memo_content = excluded.memo_content, updated_at = excluded.updated_at",
		memo.ID, memo.Content, memo.UpdatedAt.UTC(),
	)
	return err
}
