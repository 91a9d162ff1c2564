package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// WithConn runs fn on exactly one pooled connection under the per-operation
// deadline. The connection goes back to the pool on every return path.
func (d *DB) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sqlx.Conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := d.x.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// InsertID executes an INSERT and returns the generated id. Postgres has no
// LastInsertId so the statement gets a RETURNING clause there.
func (d *DB) InsertID(ctx context.Context, conn *sqlx.Conn, q string, args ...any) (int64, error) {
	if d.dialect == Postgres {
		var id int64
		err := conn.QueryRowxContext(ctx, d.Rebind(q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	res, err := conn.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Exec executes a statement and returns the number of affected rows.
func (d *DB) Exec(ctx context.Context, conn *sqlx.Conn, q string, args ...any) (int64, error) {
	res, err := conn.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Get scans a single row into dest on its own connection.
func (d *DB) Get(ctx context.Context, dest any, q string, args ...any) error {
	return d.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		return conn.GetContext(ctx, dest, d.Rebind(q), args...)
	})
}
