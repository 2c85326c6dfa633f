// Package importer переносит данные из табличных выгрузок (пользователи,
// заявки, комментарии) в хранилище. Прогон выполняется в одной транзакции:
// ошибка фазы откатывает всё, ошибка отдельной строки пишется в журнал
// и строка пропускается.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"repairdesk/db"
)

// Importer: оркестратор импорта трёх наборов строк.
type Importer struct {
	store      *db.Storage
	log        *zap.Logger
	bcryptCost int
}

// Result: счётчики принятых строк по фазам.
type Result struct {
	Users    int `json:"users"`
	Requests int `json:"requests"`
	Comments int `json:"comments"`
}

func New(store *db.Storage, log *zap.Logger, bcryptCost int) *Importer {
	return &Importer{store: store, log: log, bcryptCost: bcryptCost}
}

// Run загружает три файла и импортирует их в порядке
// пользователи → заявки → комментарии. Повторный прогон тех же файлов
// не плодит дубликатов: пользователи сводятся по логину, а заявки
// по внешнему идентификатору.
func (im *Importer) Run(ctx context.Context, usersFile, requestsFile, commentsFile string) (*Result, error) {
	users, err := LoadXLSX(usersFile)
	if err != nil {
		return nil, err
	}
	requests, err := LoadXLSX(requestsFile)
	if err != nil {
		return nil, err
	}
	comments, err := LoadXLSX(commentsFile)
	if err != nil {
		return nil, err
	}

	tx, err := im.store.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := NewResolver(ctx, tx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if result.Users, err = im.importUsers(ctx, tx, res, users); err != nil {
		return nil, err
	}
	if result.Requests, err = im.importRequests(ctx, tx, res, requests); err != nil {
		return nil, err
	}
	if result.Comments, err = im.importComments(ctx, tx, res, comments); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	im.log.Info("import finished",
		zap.Int("users", result.Users),
		zap.Int("requests", result.Requests),
		zap.Int("comments", result.Comments))
	return result, nil
}

func (im *Importer) importUsers(ctx context.Context, tx *sqlx.Tx, res *Resolver, t *Table) (int, error) {
	count := 0
	for idx, row := range t.Rows {
		rec, err := ParseUser(row, idx)
		if err != nil {
			im.log.Warn("skipping user row", zap.Int("row", idx), zap.Error(err))
			continue
		}
		roleID, known := res.RoleID(rec.Role)
		if !known {
			im.log.Warn("unknown role label, defaulting to Client",
				zap.Int("row", idx), zap.String("label", rec.Role))
		}
		if err := res.ResolveUser(ctx, tx, rec, roleID, im.bcryptCost); err != nil {
			im.log.Warn("skipping user row", zap.Int("row", idx), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

func (im *Importer) importRequests(ctx context.Context, tx *sqlx.Tx, res *Resolver, t *Table) (int, error) {
	count := 0
	for idx, row := range t.Rows {
		rec, err := ParseRequest(row, idx)
		if err != nil {
			im.log.Warn("skipping request row", zap.Int("row", idx), zap.Error(err))
			continue
		}

		clientID, ok := res.UserID(rec.ClientID)
		if !ok {
			im.log.Warn("skipping request row: unknown client",
				zap.Int("row", idx), zap.Int64("clientID", rec.ClientID))
			continue
		}
		var masterID *int64
		if rec.MasterID != nil {
			if id, ok := res.UserID(*rec.MasterID); ok {
				masterID = &id
			} else {
				im.log.Warn("unknown master, leaving request unassigned",
					zap.Int("row", idx), zap.Int64("masterID", *rec.MasterID))
			}
		}

		statusID, known := res.StatusID(rec.Status)
		if !known {
			im.log.Warn("unknown status label, defaulting to New",
				zap.Int("row", idx), zap.String("label", rec.Status))
		}

		typeID, modelID, err := res.ResolveEquipment(ctx, tx, rec.EquipmentType, rec.EquipmentModel)
		if err != nil {
			return count, err
		}

		var days *int64
		if rec.CompletionDate != nil {
			d := daysBetween(rec.StartDate, *rec.CompletionDate)
			days = &d
		}

		requestID, err := upsertRequest(ctx, tx, rec, clientID, masterID, statusID, typeID, modelID, days)
		if err != nil {
			im.log.Warn("skipping request row", zap.Int("row", idx), zap.Error(err))
			continue
		}
		res.MapRequest(rec.ExternalID, requestID)
		count++
	}
	return count, nil
}

func (im *Importer) importComments(ctx context.Context, tx *sqlx.Tx, res *Resolver, t *Table) (int, error) {
	count := 0
	for idx, row := range t.Rows {
		rec, err := ParseComment(row, idx)
		if err != nil {
			im.log.Warn("skipping comment row", zap.Int("row", idx), zap.Error(err))
			continue
		}
		masterID, okMaster := res.UserID(rec.MasterID)
		requestID, okRequest := res.RequestID(rec.RequestID)
		if !okMaster || !okRequest {
			// Комментарий к неизвестной заявке или от неизвестного
			// пользователя молча пропускается.
			im.log.Debug("skipping comment with unresolvable reference",
				zap.Int("row", idx),
				zap.Int64("requestID", rec.RequestID),
				zap.Int64("masterID", rec.MasterID))
			continue
		}
		if err := db.InsertCommentTx(ctx, tx, requestID, masterID, rec.ExternalID, rec.Message); err != nil {
			im.log.Warn("skipping comment row", zap.Int("row", idx), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// upsertRequest сводит заявку по external_id: повторный импорт того же
// файла обновляет существующую строку вместо добавления новой.
func upsertRequest(ctx context.Context, tx *sqlx.Tx, rec RequestRecord,
	clientID int64, masterID *int64, statusID, typeID, modelID int64, days *int64) (int64, error) {

	var requestID int64
	err := tx.GetContext(ctx, &requestID,
		`SELECT request_id FROM repair_requests WHERE external_id = ?`, rec.ExternalID)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE repair_requests SET
			    start_date = ?, equipment_type_id = ?, equipment_model_id = ?,
			    problem_description = ?, status_id = ?, completion_date = ?,
			    days_in_process = ?, repair_parts = ?, master_id = ?, client_id = ?,
			    updated_at = datetime('now')
			WHERE request_id = ?`,
			rec.StartDate, typeID, modelID, rec.Problem, statusID, rec.CompletionDate,
			days, rec.RepairParts, masterID, clientID, requestID)
		return requestID, err
	case isNoRows(err):
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO repair_requests (
			    external_id, start_date, equipment_type_id, equipment_model_id,
			    problem_description, status_id, completion_date, days_in_process,
			    repair_parts, master_id, client_id, priority
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 3)
			RETURNING request_id`,
			rec.ExternalID, rec.StartDate, typeID, modelID, rec.Problem, statusID,
			rec.CompletionDate, days, rec.RepairParts, masterID, clientID).Scan(&requestID)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE repair_requests SET request_number = ? WHERE request_id = ?`,
			db.RequestNumber(requestID), requestID)
		return requestID, err
	default:
		return 0, err
	}
}

// daysBetween считает целые дни между двумя каноническими датами.
// Нечитаемые даты и отрицательная разница дают 0.
func daysBetween(start, completion string) int64 {
	from, err := time.Parse(db.DateTimeLayout, start)
	if err != nil {
		return 0
	}
	to, err := time.Parse(db.DateTimeLayout, completion)
	if err != nil {
		return 0
	}
	days := int64(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
