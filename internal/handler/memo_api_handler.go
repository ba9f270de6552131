package handler

import (
	"encoding/json"
	"net/http"

	"memo-server/internal/domain"
	"memo-server/internal/service"
	"memo-server/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MemoAPIHandler exposes the same operations as JSON under /api/v1.
type MemoAPIHandler struct {
	service *service.MemoService
	logger  *zap.Logger
}

func NewMemoAPIHandler(service *service.MemoService, logger *zap.Logger) *MemoAPIHandler {
	return &MemoAPIHandler{
		service: service,
		logger:  logger,
	}
}

func (h *MemoAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list memos", err)
		return
	}

	memos := make([]*domain.MemoResponse, 0, list.Len())
	for _, m := range list.Memos() {
		resp := domain.NewMemoResponse(m)
		resp.Content = ""
		memos = append(memos, resp)
	}

	response.Success(w, memos)
}

func (h *MemoAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.MemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	memo, err := h.service.Create(r.Context(), req.Content)
	if verr, ok := service.AsValidationError(err); ok {
		response.UnprocessableEntity(w, verr.Caution)
		return
	}
	if err != nil {
		h.internalError(w, "Failed to create memo", err)
		return
	}

	response.Created(w, domain.NewMemoResponse(memo))
}

func (h *MemoAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	memo, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if service.IsNotFound(err) {
		response.NotFound(w, "Memo not found")
		return
	}
	if err != nil {
		h.internalError(w, "Failed to get memo", err)
		return
	}

	response.Success(w, domain.NewMemoResponse(memo))
}

func (h *MemoAPIHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.MemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	memo, err := h.service.Update(r.Context(), mux.Vars(r)["id"], req.Content)
	if service.IsNotFound(err) {
		response.NotFound(w, "Memo not found")
		return
	}
	if verr, ok := service.AsValidationError(err); ok {
		response.UnprocessableEntity(w, verr.Caution)
		return
	}
	if err != nil {
		h.internalError(w, "Failed to update memo", err)
		return
	}

	response.Success(w, domain.NewMemoResponse(memo))
}

func (h *MemoAPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.internalError(w, "Failed to delete memo", err)
		return
	}

	response.Message(w, "Memo deleted successfully")
}

func (h *MemoAPIHandler) Backup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.service.GetBackup(r.Context(), mux.Vars(r)["id"])
	if service.IsNotFound(err) {
		response.NotFound(w, "Backup not found")
		return
	}
	if err != nil {
		h.internalError(w, "Failed to get backup", err)
		return
	}

	response.Success(w, domain.NewMemoResponse(backup))
}

func (h *MemoAPIHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	response.InternalError(w, msg)
}
