package handler

import (
	"net/http"
	"time"

	"memo-server/internal/service"
	"memo-server/internal/view"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const memoField = "memo"

// memoPage is the data every memo template receives.
type memoPage struct {
	ID        string
	Content   string
	Caution   string
	UpdatedAt time.Time
	Entries   []service.MemoEntry
}

// MemoHandler serves the HTML pages.
type MemoHandler struct {
	service *service.MemoService
	views   *view.Renderer
	logger  *zap.Logger
}

func NewMemoHandler(service *service.MemoService, views *view.Renderer, logger *zap.Logger) *MemoHandler {
	return &MemoHandler{
		service: service,
		views:   views,
		logger:  logger,
	}
}

func (h *MemoHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageIndex, memoPage{Entries: list.Entries()})
}

func (h *MemoHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageNew, memoPage{})
}

func (h *MemoHandler) Create(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Create(r.Context(), r.PostFormValue(memoField))
	if verr, ok := service.AsValidationError(err); ok {
		h.render(w, r, http.StatusOK, view.PageNew, memoPage{Caution: verr.Caution, Content: verr.Content})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/memos", http.StatusSeeOther)
}

func (h *MemoHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	memo, err := h.service.Get(r.Context(), id)
	if service.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageShow, memoPage{ID: memo.ID, Content: memo.Content, UpdatedAt: memo.UpdatedAt})
}

func (h *MemoHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	memo, err := h.service.Get(r.Context(), id)
	if service.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageEdit, memoPage{ID: memo.ID, Content: memo.Content})
}

func (h *MemoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	_, err := h.service.Update(r.Context(), id, r.PostFormValue(memoField))
	if service.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	if verr, ok := service.AsValidationError(err); ok {
		h.render(w, r, http.StatusOK, view.PageEdit, memoPage{ID: id, Caution: verr.Caution, Content: verr.Content})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/memos", http.StatusSeeOther)
}

func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/memos", http.StatusSeeOther)
}

func (h *MemoHandler) Backup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	backup, err := h.service.GetBackup(r.Context(), id)
	if service.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, view.PageBackup, memoPage{ID: backup.ID, Content: backup.Content, UpdatedAt: backup.UpdatedAt})
}

func (h *MemoHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	memo, err := h.service.Restore(r.Context(), id)
	if service.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/memos/"+memo.ID, http.StatusSeeOther)
}

func (h *MemoHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, view.PageNotFound, memoPage{})
}

func (h *MemoHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	h.render(w, r, http.StatusInternalServerError, view.PageError, memoPage{})
}

func (h *MemoHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data memoPage) {
	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}
