package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/results"
)

type execCall struct {
	query string
	args  []any
}

type fakeConn struct {
	rows    *dbconn.Rows
	err     error
	execs   []execCall
	commits int
}

func (c *fakeConn) Execute(_ context.Context, query string, args ...any) (*dbconn.Rows, error) {
	c.execs = append(c.execs, execCall{query: query, args: args})
	if c.err != nil {
		return nil, c.err
	}
	return c.rows, nil
}

func (c *fakeConn) Commit(context.Context) error {
	c.commits++
	return c.err
}

func (c *fakeConn) SetAutocommit(bool) error { return nil }
func (c *fakeConn) Close() error             { return nil }

type fakeBackend struct {
	conn       *fakeConn
	name, id   string
	createErr  error
	connectErr error
	created    []string
	prepared   []string
}

func (b *fakeBackend) CreateBranch(_ context.Context, name, parentID string) error {
	if b.createErr != nil {
		return b.createErr
	}
	b.created = append(b.created, name+"<-"+parentID)
	return nil
}

func (b *fakeBackend) ConnectBranch(_ context.Context, name string) error {
	if b.connectErr != nil {
		return b.connectErr
	}
	b.name, b.id = name, "id-"+name
	return nil
}

func (b *fakeBackend) CurrentBranch() (string, string) { return b.name, b.id }

func (b *fakeBackend) PrepareCommit(_ context.Context, message string) error {
	b.prepared = append(b.prepared, message)
	return nil
}

func (b *fakeBackend) Conn() dbconn.Conn {
	if b.conn == nil {
		return nil
	}
	return b.conn
}

func (b *fakeBackend) SetupURI() string { return "postgres://setup" }
func (b *fakeBackend) Close() error     { b.conn = nil; return nil }

type deletingBackend struct {
	fakeBackend
	deleted []string
}

func (b *deletingBackend) DeleteDatabase(_ context.Context, name string) error {
	b.deleted = append(b.deleted, name)
	return nil
}

func newTestSession(backend Backend) *Session {
	return New(zerolog.Nop(), backend, results.NewRecorder(zerolog.Nop(), results.WithRunID("run")))
}

func connectedBackend() *fakeBackend {
	return &fakeBackend{conn: &fakeConn{}, name: "main", id: "br-main"}
}

func TestSession_NotConnected(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(&fakeBackend{})

	tests := []struct {
		name string
		call func() error
	}{
		{name: "create branch", call: func() error { return s.CreateBranch(ctx, "b", "") }},
		{name: "connect branch", call: func() error { return s.ConnectBranch(ctx, "b", true) }},
		{name: "current branch", call: func() error { _, _, err := s.CurrentBranch(); return err }},
		{name: "commit", call: func() error { return s.CommitChanges(ctx, true, "") }},
		{name: "execute", call: func() error { _, err := s.ExecuteSQL(ctx, "SELECT 1", nil, true); return err }},
		{name: "table schema", call: func() error { _, err := s.TableSchema(ctx, "t"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.call(), ErrNotConnected)
		})
	}
	require.Zero(t, s.Recorder().Len())
}

func TestSession_CreateBranchAlwaysTimed(t *testing.T) {
	backend := connectedBackend()
	s := newTestSession(backend)

	require.NoError(t, s.CreateBranch(context.Background(), "feature", "br-main"))
	require.Equal(t, []string{"feature<-br-main"}, backend.created)

	records := s.Recorder().Records()
	require.Len(t, records, 1)
	require.Equal(t, model.OpTypeBranchCreate, records[0].OpType)
	require.GreaterOrEqual(t, records[0].Latency, 0.0)
}

func TestSession_CreateBranchFailure(t *testing.T) {
	backend := connectedBackend()
	backend.createErr = errors.New("quota exceeded")
	s := newTestSession(backend)

	err := s.CreateBranch(context.Background(), "feature", "")
	require.ErrorIs(t, err, backend.createErr)
	require.Zero(t, s.Recorder().Len())
	require.Equal(t, model.OpTypeUnspecified, s.Recorder().CurrentOpType())
}

func TestSession_ConnectBranch(t *testing.T) {
	ctx := context.Background()
	backend := connectedBackend()
	s := newTestSession(backend)

	require.NoError(t, s.ConnectBranch(ctx, "feature", false))
	require.Zero(t, s.Recorder().Len())

	name, id, err := s.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "feature", name)
	require.Equal(t, "id-feature", id)

	require.NoError(t, s.ConnectBranch(ctx, "main", true))
	records := s.Recorder().Records()
	require.Len(t, records, 1)
	require.Equal(t, model.OpTypeBranchConnect, records[0].OpType)

	backend.connectErr = ErrBranchNotFound
	require.ErrorIs(t, s.ConnectBranch(ctx, "missing", true), ErrBranchNotFound)
	require.Equal(t, 1, s.Recorder().Len())
}

func TestSession_ExecuteSQL(t *testing.T) {
	ctx := context.Background()
	backend := connectedBackend()
	backend.conn.rows = &dbconn.Rows{Columns: []string{"n"}, Values: [][]any{{int64(1)}}}
	s := newTestSession(backend)

	rows, err := s.ExecuteSQL(ctx, "SELECT n FROM t WHERE id = $1", []any{7}, true)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	require.Equal(t, []execCall{{query: "SELECT n FROM t WHERE id = $1", args: []any{7}}}, backend.conn.execs)

	_, err = s.ExecuteSQL(ctx, "INSERT INTO t VALUES (1)", nil, true)
	require.NoError(t, err)

	_, err = s.ExecuteSQL(ctx, "UPDATE t SET n = 2", nil, false)
	require.NoError(t, err)

	records := s.Recorder().Records()
	require.Len(t, records, 2)
	require.Equal(t, model.OpTypeRead, records[0].OpType)
	require.Equal(t, "SELECT n FROM t WHERE id = $1 -- args: [7]", records[0].SQLQuery)
	require.Equal(t, model.OpTypeInsert, records[1].OpType)
	require.Equal(t, "INSERT INTO t VALUES (1)", records[1].SQLQuery)
	require.Equal(t, int64(1), records[1].IterationNumber)
}

func TestSession_ExecuteSQLFailure(t *testing.T) {
	backend := connectedBackend()
	backend.conn.err = errors.New("deadlock detected")
	s := newTestSession(backend)

	_, err := s.ExecuteSQL(context.Background(), "UPDATE t SET n = 1", nil, true)
	require.ErrorIs(t, err, backend.conn.err)
	require.Contains(t, err.Error(), "UPDATE t SET n = 1")
	require.Equal(t, int64(0), s.Recorder().Iteration())
	require.Zero(t, s.Recorder().Len())
}

func TestSession_ExecuteSQLKindConflict(t *testing.T) {
	backend := connectedBackend()
	s := newTestSession(backend)

	require.NoError(t, results.Timed(s.Recorder(), true, model.OpTypeRead, func() error { return nil }))
	_, err := s.ExecuteSQL(context.Background(), "INSERT INTO t VALUES (1)", nil, true)
	require.ErrorIs(t, err, ErrOperationKindConflict)
	require.Zero(t, s.Recorder().Len())
}

func TestSession_CommitChanges(t *testing.T) {
	ctx := context.Background()
	backend := connectedBackend()
	s := newTestSession(backend)

	require.NoError(t, s.CommitChanges(ctx, false, "first"))
	require.NoError(t, s.CommitChanges(ctx, true, "second"))

	require.Equal(t, []string{"first", "second"}, backend.prepared)
	require.Equal(t, 2, backend.conn.commits)
	records := s.Recorder().Records()
	require.Len(t, records, 1)
	require.Equal(t, model.OpTypeCommit, records[0].OpType)
}

func TestSession_DeleteDatabase(t *testing.T) {
	ctx := context.Background()

	backend := connectedBackend()
	s := newTestSession(backend)
	require.NoError(t, s.DeleteDatabase(ctx, "bench"))
	require.Equal(t, `DROP DATABASE IF EXISTS "bench";`, backend.conn.execs[0].query)

	deleting := &deletingBackend{fakeBackend: *connectedBackend()}
	s = newTestSession(deleting)
	require.NoError(t, s.DeleteDatabase(ctx, "bench"))
	require.Equal(t, []string{"bench"}, deleting.deleted)
	require.Empty(t, deleting.conn.execs)
}

func TestSession_TableSchema(t *testing.T) {
	backend := connectedBackend()
	backend.conn.rows = &dbconn.Rows{
		Columns: []string{"column_name", "udt_name", "is_nullable", "character_maximum_length", "numeric_precision", "numeric_scale"},
		Values: [][]any{
			{"id", "int4", "NO", nil, int64(32), int64(0)},
			{"name", "varchar", "YES", int64(40), nil, nil},
			{"price", "numeric", "YES", nil, int64(10), int64(2)},
			{[]byte("code"), []byte("bpchar"), []byte("NO"), []byte("2"), nil, nil},
		},
	}
	s := newTestSession(backend)

	schema, err := s.TableSchema(context.Background(), "items")
	require.NoError(t, err)
	require.Equal(t, "CREATE TABLE items (\n"+
		"  id int4 NOT NULL,\n"+
		"  name varchar(40),\n"+
		"  price numeric(10, 2),\n"+
		"  code bpchar(2) NOT NULL\n"+
		");", schema)
	require.Equal(t, []any{"items"}, backend.conn.execs[0].args)
	require.Zero(t, s.Recorder().Len())
}

func TestSession_TableSchemaNotFound(t *testing.T) {
	s := newTestSession(connectedBackend())

	_, err := s.TableSchema(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestSession_Close(t *testing.T) {
	backend := connectedBackend()
	s := newTestSession(backend)

	require.Equal(t, "postgres://setup", s.SetupURI())
	require.NoError(t, s.Close())
	_, err := s.ExecuteSQL(context.Background(), "SELECT 1", nil, false)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestRenderQuery(t *testing.T) {
	require.Equal(t, "SELECT 1", RenderQuery("SELECT 1", nil))
	require.Equal(t, "SELECT $1, $2 -- args: [1 a]", RenderQuery("SELECT $1, $2", []any{1, "a"}))
}
