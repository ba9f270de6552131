package service

import (
	"context"
	"sort"

	"memo-server/internal/domain"
	"memo-server/internal/repository"
)

// MemoList is a request-scoped snapshot of all memos.
type MemoList struct {
	memos []*domain.Memo
}

// MemoEntry pairs a memo's first line with its id for display.
type MemoEntry struct {
	FirstLine string
	ID        string
}

func NewMemoList(memos []*domain.Memo) *MemoList {
	return &MemoList{memos: memos}
}

// LoadMemoList scans the whole substrate.
func LoadMemoList(ctx context.Context, repo repository.MemoRepository) (*MemoList, error) {
	memos, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewMemoList(memos), nil
}

// SortByRecency orders the list most recently modified first.
func (l *MemoList) SortByRecency() {
	sort.SliceStable(l.memos, func(i, j int) bool {
		return l.memos[i].UpdatedAt.After(l.memos[j].UpdatedAt)
	})
}

func (l *MemoList) FirstLines() []string {
	lines := make([]string, len(l.memos))
	for i, m := range l.memos {
		lines[i] = m.FirstLine()
	}
	return lines
}

func (l *MemoList) IDs() []string {
	ids := make([]string, len(l.memos))
	for i, m := range l.memos {
		ids[i] = m.ID
	}
	return ids
}

func (l *MemoList) Entries() []MemoEntry {
	lines, ids := l.FirstLines(), l.IDs()
	entries := make([]MemoEntry, len(ids))
	for i := range ids {
		entries[i] = MemoEntry{FirstLine: lines[i], ID: ids[i]}
	}
	return entries
}

func (l *MemoList) Memos() []*domain.Memo {
	return l.memos
}

func (l *MemoList) Len() int {
	return len(l.memos)
}
