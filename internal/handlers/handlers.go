package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"repairdesk/db"
)

// Handler оборачивает хранилище для HTTP-доступа к данным
type Handler struct {
	Store StorageInterface
	Log   *zap.Logger
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, log *zap.Logger) *Handler {
	return &Handler{Store: store, Log: log}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeStorageError переводит ошибки хранилища в HTTP-статусы:
// ErrNotFound: 404, ValidationError: 400, остальное: 500.
func (h *Handler) writeStorageError(w http.ResponseWriter, err error, op string) {
	var vErr *db.ValidationError
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &vErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": vErr.Message,
		})
	default:
		h.Log.Error(op, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody читает JSON-тело запроса с ограничением размера.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
