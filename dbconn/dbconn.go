// Package dbconn defines the narrow connection contract the session layer
// drives, and a database/sql implementation of it for Postgres.
package dbconn

import (
	"context"
	"errors"
)

// ErrDriver marks failures of the underlying connection or query.
var ErrDriver = errors.New("driver error")

// Rows are the fully fetched results of a statement that produced a result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of fetched rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// Conn is a single live database connection.
type Conn interface {
	// Execute runs query and fetches its results. It returns nil rows for
	// statements without a result set.
	Execute(ctx context.Context, query string, args ...any) (*Rows, error)
	// Commit commits the open transaction, if any.
	Commit(ctx context.Context) error
	// SetAutocommit controls whether statements run in an implicit transaction.
	SetAutocommit(enabled bool) error
	Close() error
}

// Driver opens connections from a connection URI.
type Driver interface {
	Connect(ctx context.Context, uri string) (Conn, error)
}
