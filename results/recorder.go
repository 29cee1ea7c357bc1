// Package results accumulates per-operation measurements into an ordered,
// append-only record stream and exports it for later analysis.
package results

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/model"
)

// ErrOperationKindConflict is returned when a timed scope records a kind that
// differs from the kind already held by the current metrics slot.
var ErrOperationKindConflict = errors.New("operation kind conflict")

// phase holds the context applied to every flushed record until changed.
type phase struct {
	tableName     string
	tableSchema   string
	initialDBSize int64
	seed          int64
}

// metrics is the mutable slot written during a timed scope.
type metrics struct {
	opType         model.OpType
	latency        float64
	keysTouched    int64
	query          string
	diskSizeBefore int64
	diskSizeAfter  int64
}

// Recorder collects operation records for a single session. It is not safe
// for concurrent use.
type Recorder struct {
	logger    zerolog.Logger
	runID     string
	iteration int64
	records   []model.Record
	phase     phase
	current   metrics
	observer  *Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRunID sets the run id stamped on every record instead of a random UUID.
func WithRunID(id string) Option {
	return func(r *Recorder) {
		r.runID = id
	}
}

// WithMetrics registers every flushed record with m.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.observer = m
	}
}

// NewRecorder creates an empty recorder.
func NewRecorder(logger zerolog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID returns the identifier stamped on every record.
func (r *Recorder) RunID() string {
	return r.runID
}

// Reset drops all records, the context and the current metrics.
func (r *Recorder) Reset() {
	r.records = nil
	r.iteration = 0
	r.phase = phase{}
	r.current = metrics{}
}

// SetContext sets the context applied to all subsequently flushed records.
func (r *Recorder) SetContext(tableName, tableSchema string, initialDBSize, seed int64) {
	r.phase = phase{
		tableName:     tableName,
		tableSchema:   tableSchema,
		initialDBSize: initialDBSize,
		seed:          seed,
	}
}

func (r *Recorder) RecordKeysTouched(n int64) {
	r.current.keysTouched = n
}

func (r *Recorder) RecordQuery(query string) {
	r.current.query = query
}

// RecordDiskSizes stores externally measured database sizes in bytes.
func (r *Recorder) RecordDiskSizes(before, after int64) {
	r.current.diskSizeBefore = before
	r.current.diskSizeAfter = after
}

// CurrentOpType returns the kind held by the current metrics slot.
func (r *Recorder) CurrentOpType() model.OpType {
	return r.current.opType
}

// Iteration returns the number that the next flushed record will carry.
func (r *Recorder) Iteration() int64 {
	return r.iteration
}

func (r *Recorder) setOpType(op model.OpType) error {
	if r.current.opType != model.OpTypeUnspecified && r.current.opType != op {
		return fmt.Errorf("%w: was %s, now %s", ErrOperationKindConflict, r.current.opType, op)
	}
	r.current.opType = op
	return nil
}

// FlushRecord turns the current context and metrics into a new record,
// appends it and resets the metrics. The context is kept.
func (r *Recorder) FlushRecord() model.Record {
	rec := model.Record{
		RunID:           r.runID,
		RandomSeed:      r.phase.seed,
		IterationNumber: r.iteration,
		OpType:          r.current.opType,
		InitialDBSize:   r.phase.initialDBSize,
		TableName:       r.phase.tableName,
		TableSchema:     r.phase.tableSchema,
		NumKeysTouched:  r.current.keysTouched,
		Latency:         r.current.latency,
		DiskSizeBefore:  r.current.diskSizeBefore,
		DiskSizeAfter:   r.current.diskSizeAfter,
		SQLQuery:        r.current.query,
	}
	r.records = append(r.records, rec)
	r.iteration++
	r.current = metrics{}

	if r.observer != nil {
		r.observer.observe(rec)
	}

	r.logger.Debug().
		Int64("iteration", rec.IterationNumber).
		Stringer("op", rec.OpType).
		Float64("latency", rec.Latency).
		Msg("Flushed record")
	return rec
}

// Records returns a copy of all flushed records in flush order.
func (r *Recorder) Records() []model.Record {
	return slices.Clone(r.records)
}

// Len returns the number of flushed records.
func (r *Recorder) Len() int {
	return len(r.records)
}
