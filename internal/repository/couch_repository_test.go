package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"memo-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const couchTestDB = "memos"

// fakeCouch serves the subset of the CouchDB API the repositories use.
// _find pages through documents by bookmark and defaults to 25 results
// when no limit is given, like CouchDB.
type fakeCouch struct {
	mu        sync.Mutex
	docs      map[string]map[string]interface{}
	revs      int
	findLimit []int
}

func newFakeCouch(t *testing.T) (*fakeCouch, *kivik.Client) {
	t.Helper()
	fake := &fakeCouch{docs: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := kivik.New("couch", srv.URL)
	require.NoError(t, err)
	return fake, client
}

func (f *fakeCouch) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (f *fakeCouch) notFound(w http.ResponseWriter) {
	f.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "missing"})
}

func (f *fakeCouch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/"+couchTestDB+"/")
	if path == "_find" && r.Method == http.MethodPost {
		f.find(w, r)
		return
	}

	doc, exists := f.docs[path]
	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", fmt.Sprintf("%q", doc["_rev"]))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if !exists {
			f.notFound(w)
			return
		}
		w.Header().Set("ETag", fmt.Sprintf("%q", doc["_rev"]))
		f.writeJSON(w, http.StatusOK, doc)

	case http.MethodPut:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
			return
		}
		if exists && body["_rev"] != doc["_rev"] {
			f.writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "reason": "Document update conflict."})
			return
		}
		f.revs++
		rev := fmt.Sprintf("%d-fake", f.revs)
		body["_id"] = path
		body["_rev"] = rev
		f.docs[path] = body
		w.Header().Set("ETag", fmt.Sprintf("%q", rev))
		f.writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": path, "rev": rev})

	case http.MethodDelete:
		if !exists {
			f.notFound(w)
			return
		}
		delete(f.docs, path)
		f.revs++
		f.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": path, "rev": fmt.Sprintf("%d-fake", f.revs)})

	default:
		f.notFound(w)
	}
}

func (f *fakeCouch) find(w http.ResponseWriter, r *http.Request) {
	var query struct {
		Selector map[string]interface{} `json:"selector"`
		Limit    *int                   `json:"limit"`
		Bookmark string                 `json:"bookmark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	limit := 25
	if query.Limit != nil {
		limit = *query.Limit
	}
	f.findLimit = append(f.findLimit, limit)

	var ids []string
	for id, doc := range f.docs {
		if doc["type"] == query.Selector["type"] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if query.Bookmark != "" {
		start = sort.SearchStrings(ids, query.Bookmark) + 1
	}

	docs := []interface{}{}
	bookmark := query.Bookmark
	for i := start; i < len(ids) && len(docs) < limit; i++ {
		docs = append(docs, f.docs[ids[i]])
		bookmark = ids[i]
	}
	f.writeJSON(w, http.StatusOK, map[string]interface{}{"docs": docs, "bookmark": bookmark})
}

func TestCouchMemoRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	_, client := newFakeCouch(t)
	repo := NewCouchMemoRepository(client, couchTestDB)
	t1 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	exists, err := repo.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByID(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMemoNotFound)

	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "title\nbody", UpdatedAt: t1}))
	require.NoError(t, repo.Save(ctx, &domain.Memo{ID: "m1", Content: "changed\n", UpdatedAt: t1.Add(time.Hour)}))

	exists, err = repo.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)

	memo, err := repo.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", memo.ID)
	assert.Equal(t, "changed\n", memo.Content)
	assert.True(t, memo.UpdatedAt.Equal(t1.Add(time.Hour)))

	require.NoError(t, repo.Delete(ctx, "m1"))
	require.NoError(t, repo.Delete(ctx, "m1"))
	_, err = repo.FindByID(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMemoNotFound)
}

func TestCouchMemoRepository_ListReturnsEveryMemo(t *testing.T) {
	ctx := context.Background()
	fake, client := newFakeCouch(t)
	repo := NewCouchMemoRepository(client, couchTestDB)
	backups := NewCouchBackupRepository(client, couchTestDB)

	const total = 30
	for i := 0; i < total; i++ {
		memo := &domain.Memo{ID: fmt.Sprintf("m%02d", i), Content: "memo\n", UpdatedAt: time.Now()}
		require.NoError(t, repo.Save(ctx, memo))
		require.NoError(t, backups.SaveBackup(ctx, memo))
	}

	memos, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, memos, total)
	require.NotEmpty(t, fake.findLimit)
	assert.Equal(t, couchPageSize, fake.findLimit[0])
}

func TestCouchMemoRepository_ListFollowsBookmarks(t *testing.T) {
	ctx := context.Background()
	fake, client := newFakeCouch(t)
	repo := &couchMemoRepository{
		store:    couchStore{client: client, dbName: couchTestDB, docType: docTypeMemo},
		pageSize: 2,
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &domain.Memo{ID: fmt.Sprintf("m%d", i), Content: "memo\n"}))
	}

	memos, err := repo.List(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(memos))
	for _, m := range memos {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, ids)
	assert.Equal(t, []int{2, 2, 2}, fake.findLimit)
}

func TestCouchBackupRepository_Overwrites(t *testing.T) {
	ctx := context.Background()
	_, client := newFakeCouch(t)
	memos := NewCouchMemoRepository(client, couchTestDB)
	backups := NewCouchBackupRepository(client, couchTestDB)

	_, err := backups.FindBackup(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrMemoNotFound)

	require.NoError(t, backups.SaveBackup(ctx, &domain.Memo{ID: "m1", Content: "v1\n"}))
	require.NoError(t, backups.SaveBackup(ctx, &domain.Memo{ID: "m1", Content: "v2\n"}))

	backup, err := backups.FindBackup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "v2\n", backup.Content)

	// backup documents never show up as memos
	exists, err := memos.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)
	list, err := memos.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
