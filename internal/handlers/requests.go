package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"repairdesk/db"
)

// parseRequestID извлекает и проверяет параметр пути {id}.
func parseRequestID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListRequestsHandler возвращает список заявок с фильтрами из query
func (h *Handler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.RequestFilter{
		Status:        q.Get("status"),
		StartDateFrom: q.Get("date_from"),
		StartDateTo:   q.Get("date_to"),
		EquipmentType: q.Get("equipment_type"),
	}
	if v := q.Get("client_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.ClientID = id
		}
	}
	if v := q.Get("master_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.MasterID = id
		}
	}

	requests, err := h.Store.ListRequests(r.Context(), filter)
	if err != nil {
		h.writeStorageError(w, err, "list requests")
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// SearchRequestsHandler ищет заявки по подстроке в основных полях
func (h *Handler) SearchRequestsHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	requests, err := h.Store.SearchRequests(r.Context(), query)
	if err != nil {
		h.writeStorageError(w, err, "search requests")
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// GetRequestHandler возвращает одну заявку в денормализованном виде
func (h *Handler) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	request, err := h.Store.GetRequestView(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err, "get request")
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

type createRequestBody struct {
	ClientID           int64  `json:"clientId"`
	EquipmentType      string `json:"equipmentType"`
	EquipmentModel     string `json:"equipmentModel"`
	ProblemDescription string `json:"problemDescription"`
	Priority           int    `json:"priority"`
}

// CreateRequestHandler обрабатывает POST /api/requests
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if body.ClientID <= 0 || body.EquipmentType == "" || body.EquipmentModel == "" || body.ProblemDescription == "" {
		h.writeError(w, http.StatusBadRequest,
			"clientId, equipmentType, equipmentModel and problemDescription are required")
		return
	}

	request, err := h.Store.CreateRequest(r.Context(), db.CreateRequestParams{
		ClientID:           body.ClientID,
		EquipmentType:      body.EquipmentType,
		EquipmentModel:     body.EquipmentModel,
		ProblemDescription: body.ProblemDescription,
		Priority:           body.Priority,
	})
	if err != nil {
		h.writeStorageError(w, err, "create request")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"request": request,
	})
}

type assignMasterBody struct {
	MasterID  int64  `json:"masterId"`
	ChangedBy string `json:"changedBy"`
}

// AssignMasterHandler назначает мастера на заявку (PUT /api/requests/{id}/assign)
func (h *Handler) AssignMasterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var body assignMasterBody
	if err := decodeBody(w, r, &body); err != nil || body.MasterID <= 0 {
		h.writeError(w, http.StatusBadRequest, "masterId is required")
		return
	}
	if body.ChangedBy == "" {
		body.ChangedBy = "system"
	}

	if err := h.Store.AssignMaster(r.Context(), id, body.MasterID, body.ChangedBy); err != nil {
		h.writeStorageError(w, err, "assign master")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type updateStatusBody struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy"`
}

// UpdateStatusHandler меняет статус заявки (PUT /api/requests/{id}/status)
func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var body updateStatusBody
	if err := decodeBody(w, r, &body); err != nil || body.Status == "" {
		h.writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if body.ChangedBy == "" {
		body.ChangedBy = "system"
	}

	if err := h.Store.UpdateStatus(r.Context(), id, body.Status, body.ChangedBy); err != nil {
		h.writeStorageError(w, err, "update status")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RequestHistoryHandler возвращает историю смены статусов заявки
func (h *Handler) RequestHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	history, err := h.Store.ListStatusHistory(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err, "list status history")
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// MastersHandler возвращает мастеров со счетчиками загрузки
func (h *Handler) MastersHandler(w http.ResponseWriter, r *http.Request) {
	masters, err := h.Store.GetMastersStatistics(r.Context())
	if err != nil {
		h.writeStorageError(w, err, "list masters")
		return
	}
	h.writeJSON(w, http.StatusOK, masters)
}

// StatsHandler возвращает агрегированную статистику по заявкам
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetStatistics(r.Context())
	if err != nil {
		h.writeStorageError(w, err, "get statistics")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
