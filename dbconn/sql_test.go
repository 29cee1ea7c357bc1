package dbconn

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockConn(t *testing.T, autocommit bool) (Conn, sqlmock.Sqlmock) {
	t.Helper()
	dsn := "dbconn_" + strings.ReplaceAll(t.Name(), "/", "_")
	db, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := NewSQLDriver("sqlmock").Connect(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, conn.SetAutocommit(autocommit))
	return conn, mock
}

func TestExecute_ResultSet(t *testing.T) {
	conn, mock := newMockConn(t, true)
	mock.ExpectQuery("SELECT id, name FROM users WHERE id = $1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	rows, err := conn.Execute(context.Background(), "SELECT id, name FROM users WHERE id = $1", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	require.Equal(t, []any{int64(1), "alice"}, rows.Values[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_NoResultSetOpensTransaction(t *testing.T) {
	conn, mock := newMockConn(t, false)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users VALUES ($1)").WithArgs("carol").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery("UPDATE users SET name = 'x'").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectCommit()

	ctx := context.Background()
	rows, err := conn.Execute(ctx, "INSERT INTO users VALUES ($1)", "carol")
	require.NoError(t, err)
	require.Nil(t, rows)
	require.Zero(t, rows.Len())

	_, err = conn.Execute(ctx, "UPDATE users SET name = 'x'")
	require.NoError(t, err)

	require.NoError(t, conn.Commit(ctx))
	// nothing left to commit
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_QueryError(t *testing.T) {
	conn, mock := newMockConn(t, true)
	cause := errors.New("syntax error at or near \"SELEC\"")
	mock.ExpectQuery("SELEC 1").WillReturnError(cause)

	_, err := conn.Execute(context.Background(), "SELEC 1")
	require.ErrorIs(t, err, ErrDriver)
	require.ErrorIs(t, err, cause)
}

func TestSetAutocommit_InsideTransaction(t *testing.T) {
	conn, mock := newMockConn(t, false)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))

	_, err := conn.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.ErrorIs(t, conn.SetAutocommit(true), ErrDriver)
	require.NoError(t, conn.SetAutocommit(false))
}

func TestClose_RollsBackOpenTransaction(t *testing.T) {
	conn, mock := newMockConn(t, false)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM users").WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectRollback()
	mock.ExpectClose()

	_, err := conn.Execute(context.Background(), "DELETE FROM users")
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := NewSQLDriver("does-not-exist").Connect(context.Background(), "postgres://localhost/db")
	require.ErrorIs(t, err, ErrDriver)
}
