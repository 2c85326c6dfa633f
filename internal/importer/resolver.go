package importer

import (
	"context"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"repairdesk/db"
)

// Resolver сопоставляет внешние идентификаторы источника с ключами
// хранилища в пределах одного прогона импорта. Между прогонами
// состояние не переживает: сопоставление строится заново по логинам
// пользователей и external_id заявок.
type Resolver struct {
	roles    map[string]int64
	statuses map[string]int64

	users     map[int64]int64
	requests  map[int64]int64
	equipment map[string][2]int64
}

// NewResolver загружает справочники ролей и статусов из хранилища.
func NewResolver(ctx context.Context, q sqlx.QueryerContext) (*Resolver, error) {
	roles, err := db.LoadRoleIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	statuses, err := db.LoadStatusIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		roles:     roles,
		statuses:  statuses,
		users:     make(map[int64]int64),
		requests:  make(map[int64]int64),
		equipment: make(map[string][2]int64),
	}, nil
}

// RoleID возвращает ключ роли по метке. Неизвестная метка даёт роль
// Client и false вторым результатом.
func (r *Resolver) RoleID(label string) (int64, bool) {
	if id, ok := r.roles[label]; ok {
		return id, true
	}
	return r.roles[db.RoleClient], false
}

// StatusID возвращает ключ статуса по метке, по умолчанию New.
func (r *Resolver) StatusID(label string) (int64, bool) {
	if id, ok := r.statuses[label]; ok {
		return id, true
	}
	return r.statuses[db.StatusNew], false
}

// ResolveUser записывает пользователя в хранилище: совпадение по логину
// обновляет существующую строку, иначе добавляется новая. Внешний
// идентификатор запоминается для фаз заявок и комментариев.
func (r *Resolver) ResolveUser(ctx context.Context, q sqlx.ExtContext, rec UserRecord, roleID int64, bcryptCost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), bcryptCost)
	if err != nil {
		return err
	}

	var userID int64
	err = sqlx.GetContext(ctx, q, &userID, `SELECT user_id FROM users WHERE login = ?`, rec.Login)
	switch {
	case err == nil:
		_, err = q.ExecContext(ctx, `
			UPDATE users SET
			    external_id = ?, full_name = ?, phone = ?,
			    password_hash = ?, user_type_id = ?, is_active = 1
			WHERE user_id = ?`,
			rec.ExternalID, rec.FullName, rec.Phone, string(hash), roleID, userID)
		if err != nil {
			return err
		}
	case isNoRows(err):
		err = q.QueryRowxContext(ctx, `
			INSERT INTO users (external_id, full_name, phone, login, password_hash, user_type_id, is_active)
			VALUES (?, ?, ?, ?, ?, ?, 1)
			RETURNING user_id`,
			rec.ExternalID, rec.FullName, rec.Phone, rec.Login, string(hash), roleID).Scan(&userID)
		if err != nil {
			return err
		}
	default:
		return err
	}

	r.users[rec.ExternalID] = userID
	return nil
}

// ResolveEquipment возвращает ключи типа и модели оборудования,
// создавая недостающие строки. Пары мемоизируются на время прогона.
func (r *Resolver) ResolveEquipment(ctx context.Context, q sqlx.ExtContext, typeName, modelName string) (typeID, modelID int64, err error) {
	key := typeName + "\x00" + modelName
	if ids, ok := r.equipment[key]; ok {
		return ids[0], ids[1], nil
	}
	typeID, modelID, err = db.GetOrCreateEquipmentTx(ctx, q, typeName, modelName)
	if err != nil {
		return 0, 0, err
	}
	r.equipment[key] = [2]int64{typeID, modelID}
	return typeID, modelID, nil
}

// MapRequest запоминает соответствие внешнего идентификатора заявки.
func (r *Resolver) MapRequest(externalID, requestID int64) {
	r.requests[externalID] = requestID
}

// UserID возвращает ключ пользователя по внешнему идентификатору.
func (r *Resolver) UserID(externalID int64) (int64, bool) {
	id, ok := r.users[externalID]
	return id, ok
}

// RequestID возвращает ключ заявки по внешнему идентификатору.
func (r *Resolver) RequestID(externalID int64) (int64, bool) {
	id, ok := r.requests[externalID]
	return id, ok
}
