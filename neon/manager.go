package neon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/session"
)

// DefaultBranchName is used when the opening branch has no name.
const DefaultBranchName = "production"

// ControlPlane is the part of the Neon API the manager depends on.
type ControlPlane interface {
	CreateBranch(ctx context.Context, projectID, name, parentID string) (*Branch, error)
	ListBranches(ctx context.Context, projectID string) ([]Branch, error)
	ConnectionURI(ctx context.Context, projectID, branchID, database string) (string, error)
	DeleteDatabase(ctx context.Context, projectID, branchID, database string) error
}

// Options select the project, opening branch and database of a manager.
type Options struct {
	ProjectID  string
	BranchID   string
	BranchName string
	Database   string
	// Autocommit is applied to every connection the manager opens
	Autocommit bool
}

// branchEntry is the cached identity of a branch. Entries are replaced as a
// whole, never modified in place.
type branchEntry struct {
	id       string
	parentID string
	uri      string
}

// Manager is a session backend for a Neon project. It holds exactly one live
// connection, to the current branch, and caches branch ids and connection
// URIs by branch name. It is not safe for concurrent use.
type Manager struct {
	logger    zerolog.Logger
	client    ControlPlane
	driver    dbconn.Driver
	projectID string
	database  string

	autocommit bool

	conn        dbconn.Conn
	currentName string
	currentID   string
	currentURI  string

	branches map[string]branchEntry
}

var (
	_ session.Backend         = (*Manager)(nil)
	_ session.DatabaseDeleter = (*Manager)(nil)
)

// Open resolves the connection URI of the opening branch and connects to it.
func Open(ctx context.Context, logger zerolog.Logger, client ControlPlane, driver dbconn.Driver, opts Options) (*Manager, error) {
	if opts.ProjectID == "" || opts.BranchID == "" || opts.Database == "" {
		return nil, fmt.Errorf("project id, branch id and database are required")
	}
	if opts.BranchName == "" {
		opts.BranchName = DefaultBranchName
	}

	uri, err := client.ConnectionURI(ctx, opts.ProjectID, opts.BranchID, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connection uri: %w", err)
	}

	logger.Info().
		Str("project", opts.ProjectID).
		Str("branch", opts.BranchName).
		Str("branch_id", opts.BranchID).
		Msg("Initial connection to Neon")

	conn, err := connect(ctx, driver, uri, opts.Autocommit)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger:      logger,
		client:      client,
		driver:      driver,
		projectID:   opts.ProjectID,
		database:    opts.Database,
		autocommit:  opts.Autocommit,
		conn:        conn,
		currentName: opts.BranchName,
		currentID:   opts.BranchID,
		currentURI:  uri,
		branches: map[string]branchEntry{
			opts.BranchName: {id: opts.BranchID, uri: uri},
		},
	}, nil
}

func connect(ctx context.Context, driver dbconn.Driver, uri string, autocommit bool) (dbconn.Conn, error) {
	conn, err := driver.Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := conn.SetAutocommit(autocommit); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// CreateBranch creates a branch and remembers its id under name. The
// connection URI is resolved on first connect.
func (m *Manager) CreateBranch(ctx context.Context, name, parentID string) error {
	if m.conn == nil {
		return session.ErrNotConnected
	}

	branch, err := m.client.CreateBranch(ctx, m.projectID, name, parentID)
	if err != nil {
		return err
	}
	if prev, ok := m.branches[name]; ok && prev.id != branch.ID {
		m.logger.Warn().
			Str("branch", name).
			Str("previous_id", prev.id).
			Str("id", branch.ID).
			Msg("Branch name reused, addressing the new branch from now on")
	}
	m.branches[name] = branchEntry{id: branch.ID, parentID: branch.ParentID}
	return nil
}

// ConnectBranch switches the live connection to the named branch.
//
// The current connection is closed before the new one is opened. If opening
// the new connection fails the manager is left without a live connection.
func (m *Manager) ConnectBranch(ctx context.Context, name string) error {
	if m.conn == nil {
		return session.ErrNotConnected
	}

	entry, err := m.resolve(ctx, name)
	if err != nil {
		return err
	}

	if err := m.conn.Close(); err != nil {
		m.logger.Warn().Err(err).Str("branch", m.currentName).Msg("Failed to close connection")
	}
	m.conn = nil

	conn, err := connect(ctx, m.driver, entry.uri, m.autocommit)
	if err != nil {
		return err
	}

	m.conn = conn
	m.currentName = name
	m.currentID = entry.id
	m.currentURI = entry.uri
	m.branches[name] = entry
	return nil
}

// resolve returns the cache entry for name with both id and URI filled in,
// asking the control plane for whatever is missing. The cache is not updated.
func (m *Manager) resolve(ctx context.Context, name string) (branchEntry, error) {
	entry := m.branches[name]

	if entry.id == "" {
		branches, err := m.client.ListBranches(ctx, m.projectID)
		if err != nil {
			return branchEntry{}, fmt.Errorf("failed to list branches: %w", err)
		}
		matches := 0
		for _, b := range branches {
			if b.Name != name {
				continue
			}
			if matches == 0 {
				entry = branchEntry{id: b.ID, parentID: b.ParentID}
			}
			matches++
		}
		if matches == 0 {
			return branchEntry{}, fmt.Errorf("%w: %q", session.ErrBranchNotFound, name)
		}
		if matches > 1 {
			m.logger.Warn().Str("branch", name).Int("matches", matches).Str("id", entry.id).Msg("Branch name is ambiguous, using first match")
		}
	}

	if entry.uri == "" {
		uri, err := m.client.ConnectionURI(ctx, m.projectID, entry.id, m.database)
		if err != nil {
			return branchEntry{}, fmt.Errorf("failed to resolve connection uri: %w", err)
		}
		entry = branchEntry{id: entry.id, parentID: entry.parentID, uri: uri}
	}
	return entry, nil
}

func (m *Manager) CurrentBranch() (name, id string) {
	return m.currentName, m.currentID
}

// PrepareCommit is a no-op, Neon commits are plain Postgres commits.
func (m *Manager) PrepareCommit(context.Context, string) error {
	return nil
}

func (m *Manager) Conn() dbconn.Conn {
	return m.conn
}

// SetupURI returns the connection URI of the current branch.
func (m *Manager) SetupURI() string {
	return m.currentURI
}

// ProjectID returns the project the manager operates on.
func (m *Manager) ProjectID() string {
	return m.projectID
}

// DeleteDatabase deletes database from every branch of the project.
func (m *Manager) DeleteDatabase(ctx context.Context, database string) error {
	branches, err := m.client.ListBranches(ctx, m.projectID)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}
	for _, b := range branches {
		m.logger.Info().Str("database", database).Str("branch_id", b.ID).Msg("Deleting database")
		if err := m.client.DeleteDatabase(ctx, m.projectID, b.ID, database); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Close() error {
	if m.conn == nil {
		return nil
	}
	conn := m.conn
	m.conn = nil
	return conn.Close()
}
