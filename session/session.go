// Package session implements the instrumented session API shared by all
// branchable database backends. Backends provide the branch operations, the
// Session wraps them with timing and result recording.
package session

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/results"
	"github.com/branchbench/branchbench/sqlparse"
)

// Backend is the set of branch operations a branchable database must provide.
// Implementations must not time their own operations.
type Backend interface {
	// CreateBranch creates a branch called name under parentID, or under the
	// default root branch when parentID is empty.
	CreateBranch(ctx context.Context, name, parentID string) error
	// ConnectBranch replaces the live connection with one to the named branch.
	ConnectBranch(ctx context.Context, name string) error
	// CurrentBranch returns the name and id of the connected branch. Names
	// are not unique and are meant for logging only.
	CurrentBranch() (name, id string)
	// PrepareCommit runs before every commit of the live connection.
	PrepareCommit(ctx context.Context, message string) error
	// Conn returns the live connection, or nil when disconnected.
	Conn() dbconn.Conn
	// SetupURI returns a connection URI usable by external client tools.
	SetupURI() string
	// Close closes the live connection.
	Close() error
}

// DatabaseDeleter is implemented by backends that delete databases through
// their own API instead of DROP DATABASE.
type DatabaseDeleter interface {
	DeleteDatabase(ctx context.Context, name string) error
}

// Session drives a Backend and records the timing of its operations. A
// Session must be used from a single goroutine.
type Session struct {
	logger   zerolog.Logger
	backend  Backend
	recorder *results.Recorder
}

// New creates a session on top of an already connected backend.
func New(logger zerolog.Logger, backend Backend, recorder *results.Recorder) *Session {
	if recorder == nil {
		logger.Warn().Msg("Result recorder is not provided, using a private one")
		recorder = results.NewRecorder(logger)
	}
	return &Session{
		logger:   logger,
		backend:  backend,
		recorder: recorder,
	}
}

func (s *Session) Recorder() *results.Recorder {
	return s.recorder
}

func (s *Session) Backend() Backend {
	return s.backend
}

func (s *Session) conn() (dbconn.Conn, error) {
	conn := s.backend.Conn()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// CreateBranch creates a new branch. Branch creation is always timed and
// flushed as its own record.
func (s *Session) CreateBranch(ctx context.Context, name, parentID string) error {
	if _, err := s.conn(); err != nil {
		return err
	}

	err := results.Timed(s.recorder, true, model.OpTypeBranchCreate, func() error {
		return s.backend.CreateBranch(ctx, name, parentID)
	})
	if err != nil {
		return fmt.Errorf("failed to create branch %q: %w", name, err)
	}
	s.recorder.FlushRecord()

	s.logger.Debug().Str("branch", name).Str("parent", parentID).Msg("Created branch")
	return nil
}

// ConnectBranch switches the session to an existing branch.
func (s *Session) ConnectBranch(ctx context.Context, name string, timed bool) error {
	if _, err := s.conn(); err != nil {
		return err
	}

	err := results.Timed(s.recorder, timed, model.OpTypeBranchConnect, func() error {
		return s.backend.ConnectBranch(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to branch %q: %w", name, err)
	}
	if timed {
		s.recorder.FlushRecord()
	}

	_, id := s.backend.CurrentBranch()
	s.logger.Debug().Str("branch", name).Str("id", id).Msg("Connected to branch")
	return nil
}

// CurrentBranch returns the name and id of the connected branch.
func (s *Session) CurrentBranch() (name, id string, err error) {
	if _, err := s.conn(); err != nil {
		return "", "", err
	}
	name, id = s.backend.CurrentBranch()
	return name, id, nil
}

// CommitChanges commits the pending changes of the live connection.
func (s *Session) CommitChanges(ctx context.Context, timed bool, message string) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}

	err = results.Timed(s.recorder, timed, model.OpTypeCommit, func() error {
		if err := s.backend.PrepareCommit(ctx, message); err != nil {
			return err
		}
		return conn.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	if timed {
		s.recorder.FlushRecord()
	}
	return nil
}

// ExecuteSQL runs query on the current branch and returns its result set, or
// nil rows for statements that have none. Execution and fetching are timed
// together under the operation kind classified from query.
func (s *Session) ExecuteSQL(ctx context.Context, query string, args []any, timed bool) (*dbconn.Rows, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}

	op := sqlparse.Classify(query)
	rows, err := results.WithTiming(s.recorder, timed, op, func() (*dbconn.Rows, error) {
		return conn.Execute(ctx, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute sql query: %s; %v: %w", query, args, err)
	}

	if timed {
		s.recorder.RecordQuery(RenderQuery(query, args))
		s.recorder.FlushRecord()
	}
	return rows, nil
}

// RenderQuery returns query with its arguments appended as a comment.
func RenderQuery(query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	return fmt.Sprintf("%s -- args: %v", query, args)
}

// DeleteDatabase deletes the database called name.
func (s *Session) DeleteDatabase(ctx context.Context, name string) error {
	if deleter, ok := s.backend.(DatabaseDeleter); ok {
		if err := deleter.DeleteDatabase(ctx, name); err != nil {
			return fmt.Errorf("failed to delete database %q: %w", name, err)
		}
		return nil
	}

	_, err := s.ExecuteSQL(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)+";", nil, false)
	return err
}

// SetupURI returns the connection URI for external setup tools such as psql.
func (s *Session) SetupURI() string {
	return s.backend.SetupURI()
}

// Close closes the live connection of the backend.
func (s *Session) Close() error {
	return s.backend.Close()
}
