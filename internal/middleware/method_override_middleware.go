package middleware

import (
	"net/http"
	"strings"
)

const methodOverrideField = "_method"

var overridableMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride lets HTML forms send PUT, PATCH and DELETE as a POST
// carrying a _method field. It must wrap the router, since mux matches
// routes before running its own middleware.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && isForm(r) {
			method := strings.ToUpper(r.PostFormValue(methodOverrideField))
			if overridableMethods[method] {
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
