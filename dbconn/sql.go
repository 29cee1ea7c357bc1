package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// register the "pgx" and "postgres" database/sql drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// SQLDriver opens connections through a registered database/sql driver.
type SQLDriver struct {
	// Name of the database/sql driver, e.g. DriverPgx
	Name string
}

// NewSQLDriver returns a driver for the database/sql driver called name.
func NewSQLDriver(name string) *SQLDriver {
	return &SQLDriver{Name: name}
}

// Connect opens a dedicated connection to uri. New connections start with
// autocommit disabled, like a DB-API connection: the first statement opens a
// transaction that stays open until Commit.
func (d *SQLDriver) Connect(ctx context.Context, uri string) (Conn, error) {
	db, err := sql.Open(d.Name, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDriver, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect: %w", ErrDriver, err)
	}

	return &sqlConn{db: db, conn: conn}, nil
}

type sqlConn struct {
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	autocommit bool
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *sqlConn) Execute(ctx context.Context, query string, args ...any) (*Rows, error) {
	var q queryer = c.conn
	if !c.autocommit {
		if c.tx == nil {
			tx, err := c.conn.BeginTx(ctx, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrDriver, err)
			}
			c.tx = tx
		}
		q = c.tx
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDriver, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDriver, err)
	}

	// statements like INSERT or UPDATE have no result set
	if len(columns) == 0 {
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDriver, err)
		}
		return nil, nil
	}

	result := &Rows{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", ErrDriver, err)
		}
		result.Values = append(result.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDriver, err)
	}
	return result, nil
}

func (c *sqlConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ErrDriver, err)
	}
	return nil
}

func (c *sqlConn) SetAutocommit(enabled bool) error {
	if c.tx != nil && enabled {
		return fmt.Errorf("%w: cannot enable autocommit inside a transaction", ErrDriver)
	}
	c.autocommit = enabled
	return nil
}

func (c *sqlConn) Close() error {
	var errs []error
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: failed to close connection: %w", ErrDriver, err)
	}
	return nil
}
