package db

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-backend/internal/platform/config"
)

func newMock(t *testing.T, dialect Dialect) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return New(sqlx.NewDb(raw, string(dialect)), dialect, time.Second), mock
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		driver string
		url    string
		want   Dialect
	}{
		{"", "localhost:3306/attendance", MySQL},
		{"", "tcp(localhost:3306)/attendance", MySQL},
		{"", "postgres://db:5432/attendance", Postgres},
		{"", "jdbc:postgresql://db:5432/attendance", Postgres},
		{"", "file:attendance.db", SQLite},
		{"", "attendance.sqlite", SQLite},
		{"", ":memory:", SQLite},
		{"postgresql", "whatever", Postgres},
		{"SQLite3", "localhost:3306/x", SQLite},
		{"mysql", "postgres://db/x", MySQL},
	}
	for _, tt := range tests {
		t.Run(tt.driver+"|"+tt.url, func(t *testing.T) {
			got, err := ParseDialect(tt.driver, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDialect("oracle", "x")
	assert.Error(t, err)
}

func TestDSNMySQL(t *testing.T) {
	for _, raw := range []string{
		"localhost:3306/attendance?charset=utf8mb4",
		"jdbc:mysql://localhost:3306/attendance?charset=utf8mb4",
		"tcp(localhost:3306)/attendance?charset=utf8mb4",
	} {
		t.Run(raw, func(t *testing.T) {
			dsn, err := MySQL.DSN(raw, "attendance", "s3cr@t")
			require.NoError(t, err)

			c, err := mysql.ParseDSN(dsn)
			require.NoError(t, err)
			assert.Equal(t, "attendance", c.User)
			assert.Equal(t, "s3cr@t", c.Passwd)
			assert.Equal(t, "tcp", c.Net)
			assert.Equal(t, "localhost:3306", c.Addr)
			assert.Equal(t, "attendance", c.DBName)
			assert.True(t, c.ParseTime)
			assert.Equal(t, time.UTC, c.Loc)
			assert.Equal(t, 3*time.Second, c.Timeout)
			assert.Equal(t, "utf8mb4", c.Params["charset"])
		})
	}
}

func TestDSNPostgresAndSQLite(t *testing.T) {
	dsn, err := Postgres.DSN("jdbc:postgresql://db:5432/attendance?sslmode=disable", "app", "pw")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://app:pw@db:5432/attendance?sslmode=disable", dsn)

	dsn, err = SQLite.DSN("file:attendance.db", "ignored", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "file:attendance.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)

	_, err = MySQL.DSN("  ", "u", "p")
	assert.Error(t, err)
}

func TestConnectAppliesDialect(t *testing.T) {
	d, err := Connect(config.DatabaseConfig{
		URL:          "file:" + filepath.Join(t.TempDir(), "connect.db"),
		QueryTimeout: time.Second,
	})
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, SQLite, d.Dialect())
	require.NoError(t, d.Ping(context.Background()))
	assert.Equal(t, "SELECT 1 WHERE a = ?", d.Rebind("SELECT 1 WHERE a = ?"))
}

func TestWithConnReleasesOnError(t *testing.T) {
	d, _ := newMock(t, MySQL)
	boom := errors.New("boom")

	err := d.WithConn(context.Background(), func(ctx context.Context, conn *sqlx.Conn) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.x.Stats().InUse)
}

func TestInsertIDMySQL(t *testing.T) {
	d, mock := newMock(t, MySQL)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO t (a) VALUES (?)")).
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(7, 1))

	var id int64
	err := d.WithConn(context.Background(), func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		id, err = d.InsertID(ctx, conn, "INSERT INTO t (a) VALUES (?)", "x")
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIDPostgres(t *testing.T) {
	d, mock := newMock(t, Postgres)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO t (a) VALUES ($1) RETURNING id")).
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	var id int64
	err := d.WithConn(context.Background(), func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		id, err = d.InsertID(ctx, conn, "INSERT INTO t (a) VALUES (?)", "x")
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecRowsAffected(t *testing.T) {
	d, mock := newMock(t, Postgres)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE t SET a = $1 WHERE b = $2")).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	var n int64 = -1
	err := d.WithConn(context.Background(), func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		n, err = d.Exec(ctx, conn, "UPDATE t SET a = ? WHERE b = ?", 1, 2)
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.True(t, IsDuplicateKey(&pq.Error{Code: "23505"}))
	assert.False(t, IsDuplicateKey(&pq.Error{Code: "23503"}))
	assert.False(t, IsDuplicateKey(errors.New("duplicate")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestBootstrapSQLite(t *testing.T) {
	d, err := Connect(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    "file:" + filepath.Join(t.TempDir(), "schema.db"),
	})
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	require.NoError(t, d.Bootstrap(ctx))
	require.NoError(t, d.Bootstrap(ctx), "bootstrap must be idempotent")

	_, err = d.x.Exec(`INSERT INTO sys_user (name, password_digest) VALUES ('alice', 'x')`)
	require.NoError(t, err)
	_, err = d.x.Exec(`INSERT INTO sys_user (name, password_digest) VALUES ('alice', 'y')`)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	_, err = d.x.Exec(`INSERT INTO attendance_log (event_ulid, user_id, type, recorded_at, latitude, longitude)
		VALUES ('01', 1, 3, CURRENT_TIMESTAMP, 0, 0)`)
	assert.Error(t, err, "type outside {1,2} must be rejected")
}

func TestBootstrapMySQLStatements(t *testing.T) {
	d, mock := newMock(t, MySQL)
	for _, table := range []string{"sys_user", "attendance_log", "saved_locations"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, d.Bootstrap(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapFailureIsReported(t *testing.T) {
	d, mock := newMock(t, Postgres)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sys_user").WillReturnError(errors.New("database is starting up"))

	err := d.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create schema")
}
