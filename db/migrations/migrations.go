package migrations

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

// Run выполняет все миграции из встроенной папки sql,
// безопасно вызывать на каждом старте процесса.
func Run(db *sqlx.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db.DB, "sql")
}

// Recreate сносит все пользовательские таблицы и представления,
// включая журнал goose, и накатывает схему заново. Используется
// только при полной переинициализации по явной команде init.
func Recreate(db *sqlx.DB) error {
	var objects []struct {
		Type string `db:"type"`
		Name string `db:"name"`
	}
	err := db.Select(&objects,
		`SELECT type, name FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	for _, obj := range objects {
		stmt := "DROP TABLE IF EXISTS"
		if obj.Type == "view" {
			stmt = "DROP VIEW IF EXISTS"
		}
		if _, err := db.Exec(fmt.Sprintf(`%s "%s"`, stmt, obj.Name)); err != nil {
			return err
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	return Run(db)
}
