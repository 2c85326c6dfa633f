package db_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"repairdesk/db"
	"repairdesk/db/migrations"
)

func openTestStorage(t *testing.T) *db.Storage {
	t.Helper()
	conn, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	_, err = conn.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(conn))
	t.Cleanup(func() { conn.Close() })
	return db.NewStorage(conn)
}

func createUser(t *testing.T, store *db.Storage, login, role string) *db.User {
	t.Helper()
	u := &db.User{FullName: "User " + login, Phone: "+7-000", Login: login, Role: role}
	require.NoError(t, store.CreateUser(context.Background(), u, "pw", bcrypt.MinCost))
	return u
}

func createRequest(t *testing.T, store *db.Storage, clientID int64) *db.RepairRequest {
	t.Helper()
	req, err := store.CreateRequest(context.Background(), db.CreateRequestParams{
		ClientID:           clientID,
		EquipmentType:      "Washer",
		EquipmentModel:     "WX-100",
		ProblemDescription: "Does not work",
	})
	require.NoError(t, err)
	return req
}

func TestCreateRequestDefaults(t *testing.T) {
	store := openTestStorage(t)
	client := createUser(t, store, "bob", db.RoleClient)

	req := createRequest(t, store, client.ID)
	require.Equal(t, db.RequestNumber(req.ID), req.RequestNumber)
	require.Equal(t, "REQ-000001", req.RequestNumber)
	require.Equal(t, 3, req.Priority)
	require.NotEmpty(t, req.StartDate)

	view, err := store.GetRequestView(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, db.StatusNew, view.StatusName)
	require.Equal(t, "Washer", view.EquipmentType)
	require.False(t, view.HasComment)
	require.Nil(t, view.CompletionDate)
}

func TestCreateRequestValidation(t *testing.T) {
	store := openTestStorage(t)
	client := createUser(t, store, "bob", db.RoleClient)
	ctx := context.Background()

	_, err := store.CreateRequest(ctx, db.CreateRequestParams{
		ClientID: client.ID, EquipmentType: "Washer", EquipmentModel: "WX-100",
		ProblemDescription: "x", Priority: 9,
	})
	var vErr *db.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = store.CreateRequest(ctx, db.CreateRequestParams{
		ClientID: 999, EquipmentType: "Washer", EquipmentModel: "WX-100",
		ProblemDescription: "x",
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "client not found", vErr.Message)
}

func TestAssignMaster(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	master := createUser(t, store, "alice", db.RoleMaster)
	req := createRequest(t, store, client.ID)

	require.NoError(t, store.AssignMaster(ctx, req.ID, master.ID, "manager"))

	view, err := store.GetRequestView(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, db.StatusInProgress, view.StatusName)
	require.NotNil(t, view.MasterID)
	require.Equal(t, master.ID, *view.MasterID)
	require.True(t, view.HasComment)

	// Ровно одна запись аудита в комментариях и одна в истории статусов.
	comments, err := store.ListCommentsForRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	history, err := store.ListStatusHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, db.StatusInProgress, history[0].NewStatus)
	require.NotNil(t, history[0].OldStatus)
	require.Equal(t, db.StatusNew, *history[0].OldStatus)
}

func TestAssignMasterRejectsNonMaster(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	req := createRequest(t, store, client.ID)

	err := store.AssignMaster(ctx, req.ID, client.ID, "manager")
	var vErr *db.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "user is not a master", vErr.Message)

	// Отказ не оставляет следов: статус и комментарии не изменились.
	view, err := store.GetRequestView(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, db.StatusNew, view.StatusName)
	require.False(t, view.HasComment)
}

func TestAssignMasterUnknownRequest(t *testing.T) {
	store := openTestStorage(t)
	master := createUser(t, store, "alice", db.RoleMaster)

	err := store.AssignMaster(context.Background(), 999, master.ID, "manager")
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpdateStatusReadyStampsCompletion(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	req := createRequest(t, store, client.ID)

	require.NoError(t, store.UpdateStatus(ctx, req.ID, db.StatusReady, "manager"))

	view, err := store.GetRequestView(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, db.StatusReady, view.StatusName)
	require.NotNil(t, view.CompletionDate)
	require.NotNil(t, view.DaysInProcess)
	require.GreaterOrEqual(t, *view.DaysInProcess, int64(0))

	history, err := store.ListStatusHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestUpdateStatusErrors(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	req := createRequest(t, store, client.ID)

	var vErr *db.ValidationError
	require.ErrorAs(t, store.UpdateStatus(ctx, req.ID, "Bogus", "manager"), &vErr)
	require.ErrorIs(t, store.UpdateStatus(ctx, 999, db.StatusReady, "manager"), db.ErrNotFound)
}

func TestAddCommentSetsHasComment(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	master := createUser(t, store, "alice", db.RoleMaster)
	req := createRequest(t, store, client.ID)

	parts := "compressor"
	comment, err := store.AddComment(ctx, req.ID, master.ID, "Replaced the compressor", &parts)
	require.NoError(t, err)
	require.Equal(t, "Replaced the compressor", comment.Message)

	view, err := store.GetRequestView(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, view.HasComment)
	require.NotNil(t, view.RepairParts)
	require.Contains(t, *view.RepairParts, "compressor")

	// Флаг не сбрасывается последующими комментариями.
	_, err = store.AddComment(ctx, req.ID, master.ID, "Tested, works fine", nil)
	require.NoError(t, err)
	view, err = store.GetRequestView(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, view.HasComment)

	_, err = store.AddComment(ctx, 999, master.ID, "orphan", nil)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestCompletionBeforeStartRejected(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	req := createRequest(t, store, client.ID)

	_, err := store.DB().ExecContext(ctx, `
        UPDATE repair_requests SET completion_date = '2000-01-01 00:00:00'
        WHERE request_id = ?`, req.ID)
	require.Error(t, err)
}

func TestListRequestsFilters(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	other := createUser(t, store, "carol", db.RoleClient)
	req1 := createRequest(t, store, client.ID)
	createRequest(t, store, other.ID)

	all, err := store.ListRequests(ctx, db.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	byClient, err := store.ListRequests(ctx, db.RequestFilter{ClientID: client.ID})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	require.Equal(t, req1.ID, byClient[0].ID)

	byStatus, err := store.ListRequests(ctx, db.RequestFilter{Status: db.StatusCancelled})
	require.NoError(t, err)
	require.Empty(t, byStatus)

	found, err := store.SearchRequests(ctx, "User bob")
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestAuthenticate(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	createUser(t, store, "alice", db.RoleMaster)

	user, err := store.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, db.RoleMaster, user.Role)

	_, err = store.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.Authenticate(ctx, "nobody", "pw")
	require.ErrorIs(t, err, db.ErrNotFound)

	// Успешный вход фиксирует метку времени.
	user, err = store.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
}

func TestCreateDefaultUsersOnlyOnEmptyStore(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDefaultUsers(ctx, bcrypt.MinCost))
	users, err := store.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)

	// Повторный вызов и вызов на непустой базе ничего не делают.
	require.NoError(t, store.CreateDefaultUsers(ctx, bcrypt.MinCost))
	users, err = store.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)

	manager, err := store.Authenticate(ctx, "manager", "manager123")
	require.NoError(t, err)
	require.Equal(t, db.RoleManager, manager.Role)
}

func TestDeactivateUser(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	master := createUser(t, store, "alice", db.RoleMaster)

	require.NoError(t, store.DeactivateUser(ctx, master.ID))
	_, err := store.GetUserByLogin(ctx, "alice")
	require.ErrorIs(t, err, db.ErrNotFound)

	// Строка остаётся: по id пользователь по-прежнему доступен.
	u, err := store.GetUserByID(ctx, master.ID)
	require.NoError(t, err)
	require.False(t, u.IsActive)

	require.ErrorIs(t, store.DeactivateUser(ctx, 999), db.ErrNotFound)
}

func TestGetUsersByRole(t *testing.T) {
	store := openTestStorage(t)
	createUser(t, store, "alice", db.RoleMaster)
	createUser(t, store, "bob", db.RoleClient)

	masters, err := store.GetUsersByRole(context.Background(), db.RoleMaster)
	require.NoError(t, err)
	require.Len(t, masters, 1)
	require.Equal(t, "alice", masters[0].Login)
}

func TestTemplateCommentsFallback(t *testing.T) {
	store := openTestStorage(t)
	templates, err := store.TemplateComments(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, templates)
}

func TestGetStatisticsEmptyStore(t *testing.T) {
	store := openTestStorage(t)
	stats, err := store.GetStatistics(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.TotalRequests)
	require.Zero(t, stats.CompletedRequests)
}

func TestGetMastersStatistics(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()
	client := createUser(t, store, "bob", db.RoleClient)
	master := createUser(t, store, "alice", db.RoleMaster)
	req := createRequest(t, store, client.ID)
	require.NoError(t, store.AssignMaster(ctx, req.ID, master.ID, "manager"))

	masters, err := store.GetMastersStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, masters, 1)
	require.EqualValues(t, 1, masters[0].TotalRequests)
	require.EqualValues(t, 1, masters[0].InProgressCount)
}
