package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repairdesk/db"
	"repairdesk/internal/handlers"
	"repairdesk/internal/handlers/testutils"
)

// MockStorage реализует StorageInterface; заданные поля подменяют поведение.
type MockStorage struct {
	AuthenticateFn  func(ctx context.Context, login, password string) (*db.User, error)
	ListRequestsFn  func(ctx context.Context, f db.RequestFilter) ([]db.RequestView, error)
	GetRequestFn    func(ctx context.Context, id int64) (*db.RequestView, error)
	CreateRequestFn func(ctx context.Context, p db.CreateRequestParams) (*db.RepairRequest, error)
	AssignMasterFn  func(ctx context.Context, requestID, masterID int64, changedBy string) error
	UpdateStatusFn  func(ctx context.Context, requestID int64, statusName, changedBy string) error
	AddCommentFn    func(ctx context.Context, requestID, masterID int64, message string, repairParts *string) (*db.Comment, error)
}

func (m *MockStorage) Authenticate(ctx context.Context, login, password string) (*db.User, error) {
	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, login, password)
	}
	return nil, db.ErrNotFound
}

func (m *MockStorage) ListRequests(ctx context.Context, f db.RequestFilter) ([]db.RequestView, error) {
	if m.ListRequestsFn != nil {
		return m.ListRequestsFn(ctx, f)
	}
	return []db.RequestView{}, nil
}

func (m *MockStorage) SearchRequests(ctx context.Context, q string) ([]db.RequestView, error) {
	return []db.RequestView{}, nil
}

func (m *MockStorage) GetRequestView(ctx context.Context, id int64) (*db.RequestView, error) {
	if m.GetRequestFn != nil {
		return m.GetRequestFn(ctx, id)
	}
	return nil, db.ErrNotFound
}

func (m *MockStorage) CreateRequest(ctx context.Context, p db.CreateRequestParams) (*db.RepairRequest, error) {
	if m.CreateRequestFn != nil {
		return m.CreateRequestFn(ctx, p)
	}
	return &db.RepairRequest{ID: 1, RequestNumber: db.RequestNumber(1)}, nil
}

func (m *MockStorage) AssignMaster(ctx context.Context, requestID, masterID int64, changedBy string) error {
	if m.AssignMasterFn != nil {
		return m.AssignMasterFn(ctx, requestID, masterID, changedBy)
	}
	return nil
}

func (m *MockStorage) UpdateStatus(ctx context.Context, requestID int64, statusName, changedBy string) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, requestID, statusName, changedBy)
	}
	return nil
}

func (m *MockStorage) ListStatusHistory(ctx context.Context, requestID int64) ([]db.StatusHistory, error) {
	return []db.StatusHistory{}, nil
}

func (m *MockStorage) ListComments(ctx context.Context) ([]db.CommentView, error) {
	return []db.CommentView{}, nil
}

func (m *MockStorage) ListCommentsForRequest(ctx context.Context, requestID int64) ([]db.CommentView, error) {
	return []db.CommentView{}, nil
}

func (m *MockStorage) AddComment(ctx context.Context, requestID, masterID int64, message string, repairParts *string) (*db.Comment, error) {
	if m.AddCommentFn != nil {
		return m.AddCommentFn(ctx, requestID, masterID, message, repairParts)
	}
	return &db.Comment{ID: 1, RequestID: requestID, MasterID: masterID, Message: message}, nil
}

func (m *MockStorage) TemplateComments(ctx context.Context) ([]string, error) {
	return []string{"Diagnostics completed"}, nil
}

func (m *MockStorage) GetStatistics(ctx context.Context) (*db.Statistics, error) {
	return &db.Statistics{TotalRequests: 2}, nil
}

func (m *MockStorage) GetMastersStatistics(ctx context.Context) ([]db.MasterStats, error) {
	return []db.MasterStats{}, nil
}

func newHandler(store *MockStorage) *handlers.Handler {
	return handlers.NewHandler(store, zap.NewNop())
}

func TestPingHandler(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()

	handler.PingHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestLoginHandlerSuccess(t *testing.T) {
	store := &MockStorage{
		AuthenticateFn: func(ctx context.Context, login, password string) (*db.User, error) {
			require.Equal(t, "alice", login)
			return &db.User{ID: 1, Login: "alice", Role: db.RoleMaster}, nil
		},
	}
	handler := newHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"login":"alice","password":"secret1"}`))
	w := httptest.NewRecorder()
	handler.LoginHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool    `json:"success"`
		User    db.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "alice", resp.User.Login)
}

func TestLoginHandlerWrongPassword(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"login":"alice","password":"wrong"}`))
	w := httptest.NewRecorder()
	handler.LoginHandler(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
}

func TestListRequestsHandlerParsesFilters(t *testing.T) {
	var got db.RequestFilter
	store := &MockStorage{
		ListRequestsFn: func(ctx context.Context, f db.RequestFilter) ([]db.RequestView, error) {
			got = f
			return []db.RequestView{}, nil
		},
	}
	handler := newHandler(store)

	req := httptest.NewRequest(http.MethodGet,
		"/api/requests?status=New&client_id=2&master_id=3&equipment_type=Washer&date_from=2024-01-01&date_to=2024-02-01", nil)
	w := httptest.NewRecorder()
	handler.ListRequestsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, db.RequestFilter{
		Status:        "New",
		ClientID:      2,
		MasterID:      3,
		StartDateFrom: "2024-01-01",
		StartDateTo:   "2024-02-01",
		EquipmentType: "Washer",
	}, got)
}

func TestGetRequestHandlerNotFound(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodGet, "/api/requests/99", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "99"})
	w := httptest.NewRecorder()
	handler.GetRequestHandler(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRequestHandlerBadID(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodGet, "/api/requests/abc", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "abc"})
	w := httptest.NewRecorder()
	handler.GetRequestHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRequestHandlerValidation(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodPost, "/api/requests",
		strings.NewReader(`{"clientId":1}`))
	w := httptest.NewRecorder()
	handler.CreateRequestHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRequestHandlerSuccess(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(
		`{"clientId":1,"equipmentType":"Washer","equipmentModel":"WX-100","problemDescription":"Does not work"}`))
	w := httptest.NewRecorder()
	handler.CreateRequestHandler(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"success":true`)
	require.Contains(t, w.Body.String(), "REQ-000001")
}

func TestAssignMasterHandlerRoleValidation(t *testing.T) {
	store := &MockStorage{
		AssignMasterFn: func(ctx context.Context, requestID, masterID int64, changedBy string) error {
			return &db.ValidationError{Message: "user is not a master"}
		},
	}
	handler := newHandler(store)

	req := httptest.NewRequest(http.MethodPut, "/api/requests/1/assign",
		strings.NewReader(`{"masterId":5}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()
	handler.AssignMasterHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "user is not a master")
}

func TestUpdateStatusHandlerSuccess(t *testing.T) {
	var gotStatus string
	store := &MockStorage{
		UpdateStatusFn: func(ctx context.Context, requestID int64, statusName, changedBy string) error {
			gotStatus = statusName
			return nil
		},
	}
	handler := newHandler(store)

	req := httptest.NewRequest(http.MethodPut, "/api/requests/1/status",
		strings.NewReader(`{"status":"Ready","changedBy":"manager"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()
	handler.UpdateStatusHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, db.StatusReady, gotStatus)
	require.Contains(t, w.Body.String(), `"success":true`)
}

func TestSearchRequestsHandlerMissingQuery(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodGet, "/api/requests/search", nil)
	w := httptest.NewRecorder()
	handler.SearchRequestsHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddCommentHandler(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodPost, "/api/comments",
		strings.NewReader(`{"requestId":1,"masterId":2,"message":"Ordered spare parts"}`))
	w := httptest.NewRecorder()
	handler.AddCommentHandler(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "Ordered spare parts")
}

func TestTemplateCommentsHandler(t *testing.T) {
	handler := newHandler(&MockStorage{})
	req := httptest.NewRequest(http.MethodGet, "/api/template_comments", nil)
	w := httptest.NewRecorder()
	handler.TemplateCommentsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Diagnostics completed")
}
