package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"memo-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const (
	docTypeMemo   = "memo"
	docTypeBackup = "memo_backup"
)

type memoDoc struct {
	ID        string    `json:"_id"`
	Rev       string    `json:"_rev,omitempty"`
	Type      string    `json:"type"`
	MemoID    string    `json:"memo_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *memoDoc) toMemo() *domain.Memo {
	return &domain.Memo{
		ID:        d.MemoID,
		Content:   d.Content,
		UpdatedAt: d.UpdatedAt,
	}
}

// EnsureCouchDB creates the database if it does not exist yet.
func EnsureCouchDB(ctx context.Context, client *kivik.Client, dbName string) error {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}
	return nil
}

// couchStore stores memo and backup documents of one type in a CouchDB database.
type couchStore struct {
	client  *kivik.Client
	dbName  string
	docType string
}

func (s *couchStore) docID(id string) string {
	return fmt.Sprintf("%s:%s", s.docType, id)
}

func (s *couchStore) rev(ctx context.Context, id string) (string, error) {
	rev, err := s.client.DB(s.dbName).GetRev(ctx, s.docID(id))
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return "", nil
	}
	return rev, err
}

func (s *couchStore) get(ctx context.Context, id string) (*domain.Memo, error) {
	var doc memoDoc
	err := s.client.DB(s.dbName).Get(ctx, s.docID(id)).ScanDoc(&doc)
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return nil, domain.ErrMemoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", s.docType, err)
	}
	return doc.toMemo(), nil
}

// put overwrites the document, fetching the current revision first.
func (s *couchStore) put(ctx context.Context, memo *domain.Memo) error {
	rev, err := s.rev(ctx, memo.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch %s revision: %w", s.docType, err)
	}

	doc := &memoDoc{
		ID:        s.docID(memo.ID),
		Rev:       rev,
		Type:      s.docType,
		MemoID:    memo.ID,
		Content:   memo.Content,
		UpdatedAt: memo.UpdatedAt,
	}
	if _, err := s.client.DB(s.dbName).Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save %s: %w", s.docType, err)
	}
	return nil
}

// couchPageSize bounds each _find request; CouchDB returns 25 docs when no
// limit is sent.
const couchPageSize = 200

type couchMemoRepository struct {
	store    couchStore
	pageSize int
}

func NewCouchMemoRepository(client *kivik.Client, dbName string) MemoRepository {
	return &couchMemoRepository{
		store:    couchStore{client: client, dbName: dbName, docType: docTypeMemo},
		pageSize: couchPageSize,
	}
}

func (r *couchMemoRepository) Exists(ctx context.Context, id string) (bool, error) {
	rev, err := r.store.rev(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check memo: %w", err)
	}
	return rev != "", nil
}

func (r *couchMemoRepository) FindByID(ctx context.Context, id string) (*domain.Memo, error) {
	return r.store.get(ctx, id)
}

func (r *couchMemoRepository) Save(ctx context.Context, memo *domain.Memo) error {
	return r.store.put(ctx, memo)
}

func (r *couchMemoRepository) Delete(ctx context.Context, id string) error {
	rev, err := r.store.rev(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch memo revision: %w", err)
	}
	if rev == "" {
		return nil
	}

	if _, err := r.store.client.DB(r.store.dbName).Delete(ctx, r.store.docID(id), rev); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	return nil
}

// List walks every page of the Mango query, following bookmarks until a
// short page comes back.
func (r *couchMemoRepository) List(ctx context.Context) ([]*domain.Memo, error) {
	var memos []*domain.Memo
	bookmark := ""
	for {
		page, next, err := r.findPage(ctx, bookmark)
		if err != nil {
			return nil, err
		}
		memos = append(memos, page...)

		if len(page) < r.pageSize || next == "" || next == bookmark {
			return memos, nil
		}
		bookmark = next
	}
}

func (r *couchMemoRepository) findPage(ctx context.Context, bookmark string) ([]*domain.Memo, string, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": docTypeMemo,
		},
		"limit": r.pageSize,
	}
	if bookmark != "" {
		query["bookmark"] = bookmark
	}

	rows := r.store.client.DB(r.store.dbName).Find(ctx, query)
	defer rows.Close()

	var memos []*domain.Memo
	for rows.Next() {
		var doc memoDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, "", fmt.Errorf("failed to scan memo: %w", err)
		}
		memos = append(memos, doc.toMemo())
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to list memos: %w", err)
	}

	meta, err := rows.Metadata()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read list bookmark: %w", err)
	}

	return memos, meta.Bookmark, nil
}

type couchBackupRepository struct {
	store couchStore
}

func NewCouchBackupRepository(client *kivik.Client, dbName string) BackupRepository {
	return &couchBackupRepository{
		store: couchStore{client: client, dbName: dbName, docType: docTypeBackup},
	}
}

func (r *couchBackupRepository) SaveBackup(ctx context.Context, memo *domain.Memo) error {
	return r.store.put(ctx, memo)
}

func (r *couchBackupRepository) FindBackup(ctx context.Context, id string) (*domain.Memo, error) {
	return r.store.get(ctx, id)
}
