package session

import (
	"errors"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/results"
)

var (
	// ErrNotConnected is returned when an operation needs a live connection
	// and the session has none.
	ErrNotConnected = errors.New("database connection is not established")
	// ErrBranchNotFound is returned when a branch name is unknown locally and
	// to the control plane.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrExternalAPI marks control-plane calls that returned a non-success status.
	ErrExternalAPI = errors.New("external API error")
	// ErrTableNotFound is returned by TableSchema for unknown tables.
	ErrTableNotFound = errors.New("table not found")

	ErrOperationKindConflict = results.ErrOperationKindConflict
	ErrDriver                = dbconn.ErrDriver
)
