package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const userSelect = `
    SELECT u.user_id, u.external_id, u.full_name, u.phone, u.login, u.password_hash,
           u.user_type_id, ut.type_name AS role, u.is_active, u.created_at, u.last_login
    FROM users u
    JOIN user_types ut ON u.user_type_id = ut.user_type_id`

// CreateUser хеширует пароль и добавляет активного пользователя.
// Роль берётся из u.Role; неизвестная роль считается ошибкой валидации.
func (s *Storage) CreateUser(ctx context.Context, u *User, password string, bcryptCost int) error {
	roleID, err := roleIDByName(ctx, s.db, u.Role)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UserTypeID = roleID

	query := `
        INSERT INTO users (external_id, full_name, phone, login, password_hash, user_type_id, is_active)
        VALUES (?, ?, ?, ?, ?, ?, 1)
        RETURNING user_id, created_at`
	return s.db.QueryRowContext(ctx, query,
		u.ExternalID, u.FullName, u.Phone, u.Login, u.PasswordHash, roleID).
		Scan(&u.ID, &u.CreatedAt)
}

// GetUserByLogin ищет активного пользователя по логину.
func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	u := &User{}
	err := s.db.GetContext(ctx, u, userSelect+` WHERE u.login = ? AND u.is_active = 1`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByID ищет пользователя по внутреннему id.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := s.db.GetContext(ctx, u, userSelect+` WHERE u.user_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetAllUsers возвращает всех активных пользователей.
func (s *Storage) GetAllUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users,
		userSelect+` WHERE u.is_active = 1 ORDER BY ut.type_name, u.full_name`)
	return users, err
}

// GetUsersByRole возвращает активных пользователей с заданной ролью.
func (s *Storage) GetUsersByRole(ctx context.Context, role string) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users,
		userSelect+` WHERE ut.type_name = ? AND u.is_active = 1 ORDER BY u.full_name`, role)
	return users, err
}

// DeactivateUser помечает пользователя неактивным; строки не удаляются,
// чтобы не ломать ссылки из заявок и комментариев.
func (s *Storage) DeactivateUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE user_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate проверяет пару логин/пароль и обновляет last_login.
// Неверные учётные данные возвращаются как ErrNotFound, без деталей.
func (s *Storage) Authenticate(ctx context.Context, login, password string) (*User, error) {
	u, err := s.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET last_login = datetime('now') WHERE user_id = ?`, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateDefaultUsers заводит стартовый набор учётных записей,
// если таблица пользователей пуста.
func (s *Storage) CreateDefaultUsers(ctx context.Context, bcryptCost int) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []struct {
		login, name, role, password string
	}{
		{"manager", "Default Manager", RoleManager, "manager123"},
		{"master", "Default Master", RoleMaster, "master123"},
		{"operator", "Default Operator", RoleOperator, "operator123"},
		{"client", "Default Client", RoleClient, "client123"},
	}
	for _, d := range defaults {
		u := &User{Login: d.login, FullName: d.name, Role: d.role}
		if err := s.CreateUser(ctx, u, d.password, bcryptCost); err != nil {
			return err
		}
	}
	return nil
}

// roleIDByName находит id роли по имени из закрытого словаря.
func roleIDByName(ctx context.Context, q sqlx.QueryerContext, role string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		`SELECT user_type_id FROM user_types WHERE type_name = ?`, role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &ValidationError{Message: "unknown role: " + role}
	}
	return id, err
}

// LoadRoleIDs загружает словарь роль -> id (для импорта, одним запросом).
func LoadRoleIDs(ctx context.Context, q sqlx.QueryerContext) (map[string]int64, error) {
	rows, err := q.QueryxContext(ctx, `SELECT type_name, user_type_id FROM user_types`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		m[name] = id
	}
	return m, rows.Err()
}

// LoadStatusIDs загружает словарь статус -> id (для импорта, одним запросом).
func LoadStatusIDs(ctx context.Context, q sqlx.QueryerContext) (map[string]int64, error) {
	rows, err := q.QueryxContext(ctx, `SELECT status_name, status_id FROM request_statuses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		m[name] = id
	}
	return m, rows.Err()
}
