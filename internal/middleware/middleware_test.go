package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func methodRecorder(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.Method
	})
}

func formRequest(method string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, "/memos/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMethodOverride(t *testing.T) {
	cases := []struct {
		name   string
		req    *http.Request
		expect string
	}{
		{"patch", formRequest(http.MethodPost, url.Values{"_method": {"PATCH"}}), http.MethodPatch},
		{"delete lowercase", formRequest(http.MethodPost, url.Values{"_method": {"delete"}}), http.MethodDelete},
		{"unsupported", formRequest(http.MethodPost, url.Values{"_method": {"GET"}}), http.MethodPost},
		{"no field", formRequest(http.MethodPost, url.Values{"memo": {"x"}}), http.MethodPost},
		{"get ignored", httptest.NewRequest(http.MethodGet, "/memos?_method=DELETE", nil), http.MethodGet},
		{"json ignored", httptest.NewRequest(http.MethodPost, "/memos", strings.NewReader(`{"_method":"DELETE"}`)), http.MethodPost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			MethodOverride(methodRecorder(&got)).ServeHTTP(httptest.NewRecorder(), tc.req)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestMethodOverride_KeepsFormReadable(t *testing.T) {
	var memo string
	h := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		memo = r.PostFormValue("memo")
	}))
	h.ServeHTTP(httptest.NewRecorder(), formRequest(http.MethodPost, url.Values{"_method": {"PATCH"}, "memo": {"title\nbody"}}))
	assert.Equal(t, "title\nbody", memo)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORSMiddleware("https://a.example, https://b.example", "GET,POST", "Content-Type")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memos", nil)
	req.Header.Set("Origin", "https://b.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "https://b.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/memos", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/memos", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET,POST", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := LoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/memos", nil))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "POST", fields["method"])
		assert.Equal(t, "/memos", fields["path"])
		assert.EqualValues(t, http.StatusSeeOther, fields["status"])
		assert.EqualValues(t, 2, fields["bytes"])
	}
}
