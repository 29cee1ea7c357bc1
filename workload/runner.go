package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/session"
)

// Runner executes workloads against a session.
type Runner struct {
	logger  zerolog.Logger
	session *session.Session
}

func NewRunner(logger zerolog.Logger, s *session.Session) *Runner {
	return &Runner{logger: logger, session: s}
}

// Run sets the recorder context from the workload and executes its steps
// Repeat times. The first failing step aborts the run.
func (r *Runner) Run(ctx context.Context, w *Workload) error {
	schema := w.Table.Schema
	if w.Table.Name != "" && schema == "" {
		var err error
		schema, err = r.session.TableSchema(ctx, w.Table.Name)
		if errors.Is(err, session.ErrTableNotFound) {
			r.logger.Warn().Str("table", w.Table.Name).Msg("Table not found, recording without schema")
		} else if err != nil {
			return fmt.Errorf("failed to fetch table schema: %w", err)
		}
	}
	r.session.Recorder().SetContext(w.Table.Name, schema, w.Table.InitialDBSize, w.Seed)

	for i := 0; i < w.Repeat; i++ {
		for n, step := range w.Steps {
			step = step.Expand(i)
			r.logger.Debug().
				Int("repeat", i).
				Int("step", n).
				Str("op", string(step.Op)).
				Str("branch", step.Branch).
				Msg("Running step")

			if err := r.runStep(ctx, step); err != nil {
				return fmt.Errorf("failed at repeat %d step %d (%s): %w", i, n, step.Op, err)
			}
		}
	}

	r.logger.Info().
		Str("workload", w.Name).
		Int("records", r.session.Recorder().Len()).
		Msg("Workload finished")
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	switch step.Op {
	case OpCreateBranch:
		parent := step.Parent
		if step.FromCurrent {
			_, id, err := r.session.CurrentBranch()
			if err != nil {
				return err
			}
			parent = id
		}
		return r.session.CreateBranch(ctx, step.Branch, parent)

	case OpConnectBranch:
		return r.session.ConnectBranch(ctx, step.Branch, step.Timed)

	case OpSQL:
		// keys are only meaningful on a record that is flushed
		if step.Timed && step.KeysTouched > 0 {
			r.session.Recorder().RecordKeysTouched(step.KeysTouched)
		}
		rows, err := r.session.ExecuteSQL(ctx, step.Query, step.Args, step.Timed)
		if err != nil {
			return err
		}
		r.logger.Debug().Int("rows", rows.Len()).Msg("Query finished")
		return nil

	case OpCommit:
		return r.session.CommitChanges(ctx, step.Timed, step.Message)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}
