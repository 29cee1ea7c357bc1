package results

import (
	"time"

	"github.com/branchbench/branchbench/model"
)

// WithTiming runs body and, when enabled, stores its wall-clock duration and
// kind in the recorder's current metrics slot. A failing body records nothing
// and its error is returned unchanged. The slot may be written several times
// with the same kind before a flush; a different kind yields
// ErrOperationKindConflict.
func WithTiming[T any](r *Recorder, enabled bool, kind model.OpType, body func() (T, error)) (T, error) {
	if !enabled {
		return body()
	}

	start := time.Now()
	result, err := body()
	if err != nil {
		return result, err
	}
	elapsed := time.Since(start)

	if err := r.setOpType(kind); err != nil {
		return result, err
	}
	r.current.latency = elapsed.Seconds()
	return result, nil
}

// Timed is WithTiming for bodies without a result.
func Timed(r *Recorder, enabled bool, kind model.OpType, body func() error) error {
	_, err := WithTiming(r, enabled, kind, func() (struct{}, error) {
		return struct{}{}, body()
	})
	return err
}
