package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/branchbench/branchbench/model"
)

// Export writes all records to a Parquet file at path, one row per record in
// flush order. An empty recorder writes nothing.
func (r *Recorder) Export(path string) error {
	if len(r.records) == 0 {
		r.logger.Warn().Str("path", path).Msg("No results to write")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := parquet.WriteFile(path, r.records); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	r.logger.Info().Int("records", len(r.records)).Str("path", path).Msg("Wrote benchmark results")
	return nil
}

// ReadRecords loads records previously written by Export.
func ReadRecords(path string) ([]model.Record, error) {
	records, err := parquet.ReadFile[model.Record](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return records, nil
}
