package handler

import (
	"net/http"

	"memo-server/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Memos     *MemoHandler
	API       *MemoAPIHandler
	WebSocket *WebSocketHandler
	CORS      func(http.Handler) http.Handler
	Logger    *zap.Logger
}

// NewRouter wires every route. Method override and request logging wrap
// the router itself so they see requests before route matching.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	memos := cfg.Memos

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/memos", http.StatusSeeOther)
	}).Methods("GET")
	r.HandleFunc("/health", healthHandler).Methods("GET")

	r.HandleFunc("/memos", memos.List).Methods("GET")
	r.HandleFunc("/memos", memos.Create).Methods("POST")
	// before /memos/{id} so "new" is not taken for an id
	r.HandleFunc("/memos/new", memos.New).Methods("GET")
	r.HandleFunc("/memos/{id}", memos.Show).Methods("GET")
	r.HandleFunc("/memos/{id}", memos.Update).Methods("PATCH")
	r.HandleFunc("/memos/{id}", memos.Delete).Methods("DELETE")
	r.HandleFunc("/memos/{id}/edit", memos.Edit).Methods("GET")
	r.HandleFunc("/memos/{id}/backup", memos.Backup).Methods("GET")
	r.HandleFunc("/memos/{id}/restore", memos.Restore).Methods("POST")

	if cfg.API != nil {
		api := r.PathPrefix("/api/v1").Subrouter()
		if cfg.CORS != nil {
			api.Use(cfg.CORS)
		}

		api.HandleFunc("/memos", cfg.API.List).Methods("GET", "OPTIONS")
		api.HandleFunc("/memos", cfg.API.Create).Methods("POST", "OPTIONS")
		api.HandleFunc("/memos/{id}", cfg.API.Get).Methods("GET", "OPTIONS")
		api.HandleFunc("/memos/{id}", cfg.API.Update).Methods("PUT", "PATCH", "OPTIONS")
		api.HandleFunc("/memos/{id}", cfg.API.Delete).Methods("DELETE", "OPTIONS")
		api.HandleFunc("/memos/{id}/backup", cfg.API.Backup).Methods("GET", "OPTIONS")
	}

	if cfg.WebSocket != nil {
		r.HandleFunc("/ws", cfg.WebSocket.HandleConnection)
	}

	r.NotFoundHandler = http.HandlerFunc(memos.NotFound)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return middleware.MethodOverride(middleware.LoggerMiddleware(logger)(r))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"memo-server"}`))
}
