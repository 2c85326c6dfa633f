// Package schema выравнивает структуру уже существующего хранилища
// с целевой схемой: добавляет недостающие таблицы и колонки, не трогая данные.
// Версионные миграции (db/migrations) покрывают базы, созданные этим же
// приложением; schema.Ensure чинит унаследованные базы с дрейфом структуры.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Column описывает обязательную колонку таблицы.
// Aliases: устаревшие имена, из которых колонка может быть перенесена.
type Column struct {
	Name    string
	Def     string
	Aliases []string
}

// Table описывает целевую форму одной таблицы.
type Table struct {
	Name        string
	Columns     []Column
	Constraints []string
}

// Tables: целевая схема в порядке зависимостей (справочники раньше ссылающихся таблиц).
var Tables = []Table{
	{
		Name: "user_types",
		Columns: []Column{
			{Name: "user_type_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{Name: "type_name", Def: "TEXT NOT NULL UNIQUE"},
			{Name: "description", Def: "TEXT"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
	},
	{
		Name: "users",
		Columns: []Column{
			{Name: "user_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT", Aliases: []string{"id"}},
			{Name: "external_id", Def: "INTEGER", Aliases: []string{"userID"}},
			{Name: "full_name", Def: "TEXT NOT NULL DEFAULT ''", Aliases: []string{"fio"}},
			{Name: "phone", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "login", Def: "TEXT UNIQUE NOT NULL"},
			{Name: "password_hash", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "user_type_id", Def: "INTEGER NOT NULL DEFAULT 4", Aliases: []string{"user_type"}},
			{Name: "is_active", Def: "BOOLEAN NOT NULL DEFAULT 1"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
			{Name: "last_login", Def: "TIMESTAMP"},
		},
	},
	{
		Name: "equipment_types",
		Columns: []Column{
			{Name: "equipment_type_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{Name: "type_name", Def: "TEXT NOT NULL UNIQUE", Aliases: []string{"tech_type"}},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
	},
	{
		Name: "equipment_models",
		Columns: []Column{
			{Name: "equipment_model_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{Name: "model_name", Def: "TEXT NOT NULL", Aliases: []string{"tech_model"}},
			{Name: "equipment_type_id", Def: "INTEGER NOT NULL"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
		Constraints: []string{"UNIQUE (model_name, equipment_type_id)"},
	},
	{
		Name: "request_statuses",
		Columns: []Column{
			{Name: "status_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{Name: "status_name", Def: "TEXT NOT NULL UNIQUE"},
			{Name: "is_active", Def: "BOOLEAN NOT NULL DEFAULT 1"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
	},
	{
		Name: "repair_requests",
		Columns: []Column{
			{Name: "request_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT", Aliases: []string{"id"}},
			{Name: "external_id", Def: "INTEGER UNIQUE", Aliases: []string{"requestID"}},
			{Name: "request_number", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "start_date", Def: "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"},
			{Name: "equipment_type_id", Def: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "equipment_model_id", Def: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "problem_description", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "status_id", Def: "INTEGER NOT NULL DEFAULT 1"},
			{Name: "completion_date", Def: "TIMESTAMP"},
			{Name: "days_in_process", Def: "INTEGER"},
			{Name: "repair_parts", Def: "TEXT"},
			{Name: "has_comment", Def: "BOOLEAN NOT NULL DEFAULT 0"},
			{Name: "master_id", Def: "INTEGER"},
			{Name: "client_id", Def: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "priority", Def: "INTEGER NOT NULL DEFAULT 3 CHECK (priority BETWEEN 1 AND 5)"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
			{Name: "updated_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
		Constraints: []string{"CHECK (completion_date IS NULL OR completion_date >= start_date)"},
	},
	{
		Name: "comments",
		Columns: []Column{
			{Name: "comment_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT", Aliases: []string{"id"}},
			{Name: "external_id", Def: "INTEGER", Aliases: []string{"commentID"}},
			{Name: "message", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "master_id", Def: "INTEGER NOT NULL DEFAULT 0", Aliases: []string{"user_id"}},
			{Name: "request_id", Def: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "created_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
	},
	{
		Name: "status_history",
		Columns: []Column{
			{Name: "history_id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT", Aliases: []string{"id"}},
			{Name: "request_id", Def: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "old_status", Def: "TEXT"},
			{Name: "new_status", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "changed_by", Def: "TEXT NOT NULL DEFAULT ''"},
			{Name: "changed_at", Def: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
			{Name: "note", Def: "TEXT", Aliases: []string{"comment"}},
		},
	},
}

// indexes пересоздаются после пересборки таблиц (DROP TABLE уносит их с собой).
var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_users_user_type ON users(user_type_id)",
	"CREATE INDEX IF NOT EXISTS idx_users_login ON users(login)",
	"CREATE INDEX IF NOT EXISTS idx_requests_status ON repair_requests(status_id)",
	"CREATE INDEX IF NOT EXISTS idx_requests_client ON repair_requests(client_id)",
	"CREATE INDEX IF NOT EXISTS idx_requests_master ON repair_requests(master_id)",
	"CREATE INDEX IF NOT EXISTS idx_requests_dates ON repair_requests(start_date, completion_date)",
	"CREATE INDEX IF NOT EXISTS idx_comments_request ON comments(request_id)",
	"CREATE INDEX IF NOT EXISTS idx_comments_master ON comments(master_id)",
	"CREATE INDEX IF NOT EXISTS idx_history_request ON status_history(request_id)",
}

// Ensure приводит живую схему к надмножеству целевой. Повторный запуск
// по уже корректной базе ничего не меняет. Таблицы с данными не удаляются:
// при недостающих колонках строки переносятся в пересобранную таблицу.
func Ensure(ctx context.Context, db *sqlx.DB, log *zap.Logger) error {
	// Пересборка через DROP/RENAME несовместима с включённым контролем FK.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer func() {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			log.Warn("failed to re-enable foreign keys", zap.Error(err))
		}
	}()

	for _, t := range Tables {
		exists, err := tableExists(ctx, db, t.Name)
		if err != nil {
			return err
		}
		if !exists {
			log.Info("creating missing table", zap.String("table", t.Name))
			if _, err := db.ExecContext(ctx, createSQL(t, t.Name)); err != nil {
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
			continue
		}

		existing, err := tableColumns(ctx, db, t.Name)
		if err != nil {
			return err
		}
		missing := missingColumns(t, existing)
		if len(missing) == 0 {
			continue
		}

		log.Info("rebuilding table with missing columns",
			zap.String("table", t.Name), zap.Strings("missing", missing))
		if err := rebuild(ctx, db, t, existing); err != nil {
			return fmt.Errorf("rebuild table %s: %w", t.Name, err)
		}
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// rebuild создаёт теневую таблицу полной формы, переносит строки колонка
// к колонке (учитывая устаревшие имена, NULL для неизвестных источников)
// и атомарно подменяет оригинал. При ошибке копирования оригинал остаётся
// нетронутым, теневая таблица удаляется.
func rebuild(ctx context.Context, db *sqlx.DB, t Table, existing map[string]bool) error {
	shadow := t.Name + "__new"

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+shadow); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createSQL(t, shadow)); err != nil {
		return err
	}

	var dst, src []string
	for _, c := range t.Columns {
		dst = append(dst, c.Name)
		src = append(src, sourceExpr(c, existing))
	}
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		shadow, strings.Join(dst, ", "), strings.Join(src, ", "), t.Name)
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		// Откат транзакции убирает теневую таблицу и сохраняет оригинал.
		return fmt.Errorf("copy rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+t.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadow, t.Name)); err != nil {
		return err
	}
	return tx.Commit()
}

// sourceExpr выбирает источник значения колонки: её прежнее имя, известный
// псевдоним или NULL, если перенести неоткуда.
func sourceExpr(c Column, existing map[string]bool) string {
	if existing[c.Name] {
		return c.Name
	}
	for _, a := range c.Aliases {
		if existing[a] {
			return quoteIdent(a)
		}
	}
	return "NULL"
}

func createSQL(t Table, name string) string {
	parts := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		parts = append(parts, c.Name+" "+c.Def)
	}
	parts = append(parts, t.Constraints...)
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", name, strings.Join(parts, ",\n    "))
}

func tableExists(ctx context.Context, db *sqlx.DB, name string) (bool, error) {
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	return n > 0, err
}

func tableColumns(ctx context.Context, db *sqlx.DB, name string) (map[string]bool, error) {
	rows, err := db.QueryxContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    interface{}
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[colName] = true
	}
	return cols, rows.Err()
}

func missingColumns(t Table, existing map[string]bool) []string {
	var missing []string
	for _, c := range t.Columns {
		if !existing[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
