package connection

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/dialect"
	dsql "github.com/syssam/velox/dialect/sql"
)

func newMockConnection(t *testing.T, driverName string) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	drv := dsql.OpenDB(driverName, db)
	cfg := &Config{Driver: driverName}
	return NewFromDriver("default", cfg, drv), mock
}

// =============================================================================
// Select / exec
// =============================================================================

func TestConnection_Select(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectQuery("select \\* from users where id = \\?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Ada"))

	rows, err := conn.Select(context.Background(), "select * from users where id = ?", []any{1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_Insert(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectExec("insert into users").WithArgs("Ada").WillReturnResult(sqlmock.NewResult(1, 1))

	err := conn.Insert(context.Background(), "insert into users (name) values (?)", []any{"Ada"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_InsertGetID_SQLiteUsesLastInsertID(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectExec("insert into users").WithArgs("Ada").WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := conn.InsertGetID(context.Background(), "insert into users (name) values (?)", []any{"Ada"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Pretend mode
// =============================================================================

func TestConnection_Pretend(t *testing.T) {
	t.Parallel()

	conn, _ := newMockConnection(t, dialect.SQLite)

	stmts, err := conn.Pretend(func(c *Connection) error {
		_, err := c.Select(context.Background(), "select * from users", nil)
		return err
	})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "select * from users", stmts[0].SQL)
}

// =============================================================================
// Query log
// =============================================================================

func TestConnection_QueryLog(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	conn.EnableQueryLog()

	mock.ExpectQuery("select 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	_, err := conn.Select(context.Background(), "select 1", nil)
	require.NoError(t, err)

	log := conn.GetQueryLog()
	require.Len(t, log, 1)
	assert.Equal(t, "select 1", log[0].SQL)

	conn.DisableQueryLog()
	mock.ExpectQuery("select 2").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	_, err = conn.Select(context.Background(), "select 2", nil)
	require.NoError(t, err)
	assert.Len(t, conn.GetQueryLog(), 1, "logging disabled: no new entry recorded")
}

// =============================================================================
// Transactions / savepoints
// =============================================================================

func TestConnection_Transaction_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectBegin()
	mock.ExpectExec("insert into users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := conn.Transaction(context.Background(), func(c *Connection) error {
		return c.Insert(context.Background(), "insert into users (name) values (?)", []any{"Ada"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, conn.TransactionLevel())
}

func TestConnection_Transaction_RollsBackOnError(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := assert.AnError
	err := conn.Transaction(context.Background(), func(c *Connection) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, conn.TransactionLevel())
}

func TestConnection_NestedTransaction_UsesSavepoints(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectBegin()
	mock.ExpectExec("savepoint velox_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("release savepoint velox_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, conn.BeginTransaction(ctx))
	assert.Equal(t, 1, conn.TransactionLevel())

	require.NoError(t, conn.BeginTransaction(ctx))
	assert.Equal(t, 2, conn.TransactionLevel())

	require.NoError(t, conn.Commit(ctx))
	assert.Equal(t, 1, conn.TransactionLevel())

	require.NoError(t, conn.Commit(ctx))
	assert.Equal(t, 0, conn.TransactionLevel())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_NestedTransaction_RollbackToSavepoint(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.SQLite)
	mock.ExpectBegin()
	mock.ExpectExec("savepoint velox_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("rollback to savepoint velox_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	require.NoError(t, conn.BeginTransaction(ctx))
	require.NoError(t, conn.BeginTransaction(ctx))
	require.NoError(t, conn.RollBack(ctx))
	assert.Equal(t, 1, conn.TransactionLevel())
	require.NoError(t, conn.RollBack(ctx))
	assert.Equal(t, 0, conn.TransactionLevel())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_Commit_WithoutTransaction_IsLogicError(t *testing.T) {
	t.Parallel()

	conn, _ := newMockConnection(t, dialect.SQLite)
	err := conn.Commit(context.Background())
	assert.Error(t, err)
}

// =============================================================================
// Advisory locking
// =============================================================================

func TestConnection_Lock_MySQLTakesAndReleasesNamedLock(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConnection(t, dialect.MySQL)
	mock.ExpectQuery("SELECT GET_LOCK\\(\\?, \\?\\)").
		WithArgs("velox_migrations", -1).
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectExec("SELECT RELEASE_LOCK\\(\\?\\)").
		WithArgs("velox_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	unlock, err := conn.Lock(context.Background(), "velox_migrations", 0)
	require.NoError(t, err)
	require.NoError(t, unlock())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_Lock_SQLiteIsANoopUnlock(t *testing.T) {
	t.Parallel()

	conn, _ := newMockConnection(t, dialect.SQLite)
	unlock, err := conn.Lock(context.Background(), "velox_migrations", 0)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
