package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListCommentsHandler возвращает все комментарии, новые первыми
func (h *Handler) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	comments, err := h.Store.ListComments(r.Context())
	if err != nil {
		h.writeStorageError(w, err, "list comments")
		return
	}
	h.writeJSON(w, http.StatusOK, comments)
}

// RequestCommentsHandler возвращает комментарии одной заявки
func (h *Handler) RequestCommentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	comments, err := h.Store.ListCommentsForRequest(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err, "list request comments")
		return
	}
	h.writeJSON(w, http.StatusOK, comments)
}

type addCommentBody struct {
	RequestID   int64   `json:"requestId"`
	MasterID    int64   `json:"masterId"`
	Message     string  `json:"message"`
	RepairParts *string `json:"repairParts,omitempty"`
}

// AddCommentHandler добавляет комментарий к заявке (POST /api/comments)
func (h *Handler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	var body addCommentBody
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if body.RequestID <= 0 || body.MasterID <= 0 || body.Message == "" {
		h.writeError(w, http.StatusBadRequest, "requestId, masterId and message are required")
		return
	}

	comment, err := h.Store.AddComment(r.Context(), body.RequestID, body.MasterID, body.Message, body.RepairParts)
	if err != nil {
		h.writeStorageError(w, err, "add comment")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"comment": comment,
	})
}

// TemplateCommentsHandler возвращает типовые формулировки комментариев
func (h *Handler) TemplateCommentsHandler(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.TemplateComments(r.Context())
	if err != nil {
		h.writeStorageError(w, err, "template comments")
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}
