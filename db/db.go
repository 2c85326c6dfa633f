package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound возвращается, когда запись по id/логину не найдена.
var ErrNotFound = errors.New("not found")

// ValidationError помечает ошибки бизнес-валидации (неверная роль, неизвестный статус).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Storage инкапсулирует доступ к базе данных системы учёта заявок.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// DB отдаёт нижележащее соединение (нужно импортёру и менеджеру схемы).
func (s *Storage) DB() *sqlx.DB { return s.db }

// Open открывает файл SQLite и настраивает соединение.
// Путь ":memory:" допустим для тестов.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite пишет в один поток; лишние соединения дают только SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
