package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CreateRequestParams: параметры создания заявки от имени клиента.
type CreateRequestParams struct {
	ClientID           int64
	EquipmentType      string
	EquipmentModel     string
	ProblemDescription string
	Priority           int
}

// CreateRequest заводит новую заявку: статус "New", приоритет по умолчанию,
// номер заявки выводится из присвоенного id.
func (s *Storage) CreateRequest(ctx context.Context, p CreateRequestParams) (*RepairRequest, error) {
	if p.Priority == 0 {
		p.Priority = 3
	}
	if p.Priority < 1 || p.Priority > 5 {
		return nil, &ValidationError{Message: fmt.Sprintf("priority out of range: %d", p.Priority)}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var clientExists int
	err = tx.GetContext(ctx, &clientExists,
		`SELECT COUNT(*) FROM users WHERE user_id = ? AND is_active = 1`, p.ClientID)
	if err != nil {
		return nil, err
	}
	if clientExists == 0 {
		return nil, &ValidationError{Message: "client not found"}
	}

	typeID, modelID, err := GetOrCreateEquipmentTx(ctx, tx, p.EquipmentType, p.EquipmentModel)
	if err != nil {
		return nil, err
	}

	var statusID int64
	if err := tx.GetContext(ctx, &statusID,
		`SELECT status_id FROM request_statuses WHERE status_name = ?`, StatusNew); err != nil {
		return nil, err
	}

	req := &RepairRequest{
		StartDate:          "",
		EquipmentTypeID:    typeID,
		EquipmentModelID:   modelID,
		ProblemDescription: p.ProblemDescription,
		StatusID:           statusID,
		ClientID:           p.ClientID,
		Priority:           p.Priority,
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO repair_requests
            (start_date, equipment_type_id, equipment_model_id, problem_description,
             status_id, client_id, priority)
        VALUES (datetime('now'), ?, ?, ?, ?, ?, ?)
        RETURNING request_id, start_date, created_at, updated_at`,
		typeID, modelID, p.ProblemDescription, statusID, p.ClientID, p.Priority).
		Scan(&req.ID, &req.StartDate, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}

	req.RequestNumber = RequestNumber(req.ID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE repair_requests SET request_number = ? WHERE request_id = ?`,
		req.RequestNumber, req.ID); err != nil {
		return nil, err
	}
	return req, tx.Commit()
}

// GetRequest возвращает заявку по внутреннему id.
func (s *Storage) GetRequest(ctx context.Context, id int64) (*RepairRequest, error) {
	req := &RepairRequest{}
	err := s.db.GetContext(ctx, req, `SELECT * FROM repair_requests WHERE request_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

// GetRequestView возвращает денормализованную проекцию заявки.
func (s *Storage) GetRequestView(ctx context.Context, id int64) (*RequestView, error) {
	v := &RequestView{}
	err := s.db.GetContext(ctx, v, `SELECT * FROM vw_requests_full WHERE request_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// RequestFilter: параметры выборки заявок; непустые поля объединяются по AND.
type RequestFilter struct {
	Status        string
	ClientID      int64
	MasterID      int64
	StartDateFrom string
	StartDateTo   string
	EquipmentType string
}

// ListRequests возвращает заявки по фильтру; пустой результат: пустой срез, не ошибка.
func (s *Storage) ListRequests(ctx context.Context, f RequestFilter) ([]RequestView, error) {
	query := `SELECT * FROM vw_requests_full WHERE 1=1`
	var args []interface{}

	if f.Status != "" {
		query += ` AND status_name = ?`
		args = append(args, f.Status)
	}
	if f.ClientID > 0 {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.MasterID > 0 {
		query += ` AND master_id = ?`
		args = append(args, f.MasterID)
	}
	if f.StartDateFrom != "" {
		query += ` AND start_date >= ?`
		args = append(args, f.StartDateFrom)
	}
	if f.StartDateTo != "" {
		query += ` AND start_date <= ?`
		args = append(args, f.StartDateTo)
	}
	if f.EquipmentType != "" {
		query += ` AND equipment_type = ?`
		args = append(args, f.EquipmentType)
	}
	query += ` ORDER BY priority, start_date DESC`

	requests := []RequestView{}
	err := s.db.SelectContext(ctx, &requests, query, args...)
	return requests, err
}

// SearchRequests ищет заявки по подстроке в номере, описании проблемы,
// данных клиента и оборудовании.
func (s *Storage) SearchRequests(ctx context.Context, q string) ([]RequestView, error) {
	pattern := "%" + q + "%"
	requests := []RequestView{}
	err := s.db.SelectContext(ctx, &requests, `
        SELECT * FROM vw_requests_full
        WHERE request_number LIKE ? OR problem_description LIKE ?
           OR client_name LIKE ? OR client_phone LIKE ?
           OR equipment_type LIKE ? OR equipment_model LIKE ?
        ORDER BY start_date DESC`,
		pattern, pattern, pattern, pattern, pattern, pattern)
	return requests, err
}

// AssignMaster назначает мастера на заявку: проверяет роль назначаемого,
// переводит заявку в "In Progress" и оставляет запись аудита.
// Гонка двух одновременных назначений разрешается по принципу "последний победил".
func (s *Storage) AssignMaster(ctx context.Context, requestID, masterID int64, changedBy string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.GetContext(ctx, &oldStatus, `
        SELECT rs.status_name FROM repair_requests rr
        JOIN request_statuses rs ON rr.status_id = rs.status_id
        WHERE rr.request_id = ?`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var master struct {
		FullName string `db:"full_name"`
		Role     string `db:"role"`
	}
	err = tx.GetContext(ctx, &master, `
        SELECT u.full_name, ut.type_name AS role FROM users u
        JOIN user_types ut ON u.user_type_id = ut.user_type_id
        WHERE u.user_id = ? AND u.is_active = 1`, masterID)
	if errors.Is(err, sql.ErrNoRows) {
		return &ValidationError{Message: "master not found"}
	}
	if err != nil {
		return err
	}
	if master.Role != RoleMaster && master.Role != RoleManager {
		return &ValidationError{Message: "user is not a master"}
	}

	var newStatusID int64
	if err := tx.GetContext(ctx, &newStatusID,
		`SELECT status_id FROM request_statuses WHERE status_name = ?`, StatusInProgress); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE repair_requests
        SET master_id = ?, status_id = ?, updated_at = datetime('now')
        WHERE request_id = ?`, masterID, newStatusID, requestID); err != nil {
		return err
	}

	note := "Master assigned: " + master.FullName
	if err := insertStatusHistory(ctx, tx, requestID, &oldStatus, StatusInProgress, changedBy, &note); err != nil {
		return err
	}
	if err := InsertCommentTx(ctx, tx, requestID, masterID, nil, "Master assigned to request"); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateStatus переводит заявку в статус с указанным именем.
// Статус "Ready" дополнительно проставляет дату завершения и срок ремонта.
func (s *Storage) UpdateStatus(ctx context.Context, requestID int64, statusName, changedBy string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var newStatusID int64
	err = tx.GetContext(ctx, &newStatusID,
		`SELECT status_id FROM request_statuses WHERE status_name = ?`, statusName)
	if errors.Is(err, sql.ErrNoRows) {
		return &ValidationError{Message: "unknown status: " + statusName}
	}
	if err != nil {
		return err
	}

	var oldStatus string
	err = tx.GetContext(ctx, &oldStatus, `
        SELECT rs.status_name FROM repair_requests rr
        JOIN request_statuses rs ON rr.status_id = rs.status_id
        WHERE rr.request_id = ?`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if statusName == StatusReady {
		_, err = tx.ExecContext(ctx, `
            UPDATE repair_requests
            SET status_id = ?,
                completion_date = datetime('now'),
                days_in_process = CAST(julianday(date('now')) - julianday(date(start_date)) AS INTEGER),
                updated_at = datetime('now')
            WHERE request_id = ?`, newStatusID, requestID)
	} else {
		_, err = tx.ExecContext(ctx, `
            UPDATE repair_requests
            SET status_id = ?, updated_at = datetime('now')
            WHERE request_id = ?`, newStatusID, requestID)
	}
	if err != nil {
		return err
	}

	if err := insertStatusHistory(ctx, tx, requestID, &oldStatus, statusName, changedBy, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListStatusHistory возвращает историю смен статуса заявки.
func (s *Storage) ListStatusHistory(ctx context.Context, requestID int64) ([]StatusHistory, error) {
	history := []StatusHistory{}
	err := s.db.SelectContext(ctx, &history, `
        SELECT * FROM status_history WHERE request_id = ? ORDER BY changed_at, history_id`, requestID)
	return history, err
}

func insertStatusHistory(ctx context.Context, q sqlx.ExtContext, requestID int64, oldStatus *string, newStatus, changedBy string, note *string) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO status_history (request_id, old_status, new_status, changed_by, note)
        VALUES (?, ?, ?, ?, ?)`, requestID, oldStatus, newStatus, changedBy, note)
	return err
}
