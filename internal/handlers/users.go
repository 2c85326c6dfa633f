package handlers

import (
	"errors"
	"net/http"

	"repairdesk/db"
)

type loginBody struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginHandler проверяет учетные данные (POST /api/login).
// Сессия не создается: проверка без сохранения состояния.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeBody(w, r, &body); err != nil || body.Login == "" || body.Password == "" {
		h.writeError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	user, err := h.Store.Authenticate(r.Context(), body.Login, body.Password)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "invalid login or password",
			})
			return
		}
		h.writeStorageError(w, err, "login")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}
