package migrations

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRunIdempotent(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Run(conn))
	require.NoError(t, Run(conn))

	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM request_statuses"))
	require.Equal(t, 5, n)
}

func TestRecreateDropsLegacyTables(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Run(conn))

	// Таблица из старой версии схемы, о которой goose не знает.
	_, err := conn.Exec("CREATE TABLE legacy_notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO users (login, password_hash, full_name, user_type_id) VALUES ('ghost', 'x', 'Ghost', 1)")
	require.NoError(t, err)

	require.NoError(t, Recreate(conn))

	var n int
	require.NoError(t, conn.Get(&n,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'legacy_notes'"))
	require.Equal(t, 0, n)

	// Данные сброшены, а справочники засеяны заново.
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM users"))
	require.Equal(t, 0, n)
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM request_statuses"))
	require.Equal(t, 5, n)
}
