package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/branchbench/branchbench/history"
	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/results"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "read", "update"},
			want: []string{"read", "update"},
		},
		{
			name: "no --",
			in:   []string{"read", "update"},
			want: []string{"read", "update"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"read", "--", "update"},
			want: []string{"read", "--", "update"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name       string
		in         []string
		wantID     string
		wantOpArgs []string
	}{
		{
			name:       "empty args - default to 0",
			in:         []string{},
			wantID:     "0",
			wantOpArgs: nil,
		},
		{
			name:       "only ID - index 0",
			in:         []string{"0"},
			wantID:     "0",
			wantOpArgs: []string{},
		},
		{
			name:       "only ID - negative index",
			in:         []string{"-1"},
			wantID:     "-1",
			wantOpArgs: []string{},
		},
		{
			name:       "only ID - hex string",
			in:         []string{"abc123"},
			wantID:     "abc123",
			wantOpArgs: []string{},
		},
		{
			name:       "only filter flags",
			in:         []string{"-read"},
			wantID:     "0",
			wantOpArgs: []string{"-read"},
		},
		{
			name:       "ID with -- separator and filters",
			in:         []string{"0", "--", "read", "update"},
			wantID:     "0",
			wantOpArgs: []string{"read", "update"},
		},
		{
			name:       "negative index with -- and filter",
			in:         []string{"-1", "--", "commit"},
			wantID:     "-1",
			wantOpArgs: []string{"commit"},
		},
		{
			name:       "hex ID with filter no separator",
			in:         []string{"abc123", "branch_create"},
			wantID:     "abc123",
			wantOpArgs: []string{"branch_create"},
		},
		{
			name:       "only -- uses default 0",
			in:         []string{"--", "insert"},
			wantID:     "0",
			wantOpArgs: []string{"insert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOpArgs := parseViewArgs(tt.in)
			if gotID != tt.wantID {
				t.Errorf("parseViewArgs() gotID = %v, want %v", gotID, tt.wantID)
			}
			if !reflect.DeepEqual(gotOpArgs, tt.wantOpArgs) {
				t.Errorf("parseViewArgs() gotOpArgs = %v, want %v", gotOpArgs, tt.wantOpArgs)
			}
		})
	}
}

func TestParseOpFilter(t *testing.T) {
	filter, err := parseOpFilter([]string{"read", "-BRANCH_CONNECT", "unspecified"})
	require.NoError(t, err)
	require.Equal(t, map[model.OpType]bool{
		model.OpTypeRead:          true,
		model.OpTypeBranchConnect: true,
		model.OpTypeUnspecified:   true,
	}, filter)

	_, err = parseOpFilter([]string{"vacuum"})
	require.ErrorContains(t, err, "unknown operation type: vacuum")

	filter, err = parseOpFilter(nil)
	require.NoError(t, err)
	require.Empty(t, filter)
}

func TestPrintRecords(t *testing.T) {
	records := []model.Record{
		{IterationNumber: 0, OpType: model.OpTypeBranchCreate, Latency: 0.25},
		{IterationNumber: 1, OpType: model.OpTypeRead, Latency: 0.002, TableName: "orders", SQLQuery: "SELECT *\n  FROM orders"},
		{IterationNumber: 2, OpType: model.OpTypeRead, Latency: 0.004, TableName: "orders", NumKeysTouched: 3},
	}

	var out bytes.Buffer
	require.NoError(t, printRecords(&out, records, map[model.OpType]bool{model.OpTypeRead: true}))

	got := out.String()
	require.Contains(t, got, "ITER")
	require.Contains(t, got, "SELECT * FROM orders")
	require.NotContains(t, got, "BRANCH_CREATE")
	require.Contains(t, got, "2 records, mean latency 3ms")
}

func TestDisplayRun(t *testing.T) {
	dir := t.TempDir()
	recorder := results.NewRecorder(zerolog.Nop(), results.WithRunID("run-1"))
	recorder.SetContext("orders", "", 10, 7)
	recorder.RecordQuery("SELECT 1")
	recorder.FlushRecord()
	require.NoError(t, recorder.Export(filepath.Join(dir, recordsFile)))

	a := &App{logger: zerolog.Nop()}
	run := &model.Run{ID: "run-1", Workload: "smoke", Timestamp: time.Now(), Seed: 7}
	a.addArtifact(run, dir, model.ArtifactTypeRecords, recordsFile)
	a.addArtifact(run, dir, model.ArtifactTypeMetrics, metricsFile)
	require.Len(t, run.Artifacts, 1)

	var out bytes.Buffer
	require.NoError(t, a.displayRun(&out, &history.Entry{Run: *run, FullPath: dir}, nil))
	require.Contains(t, out.String(), "Workload: smoke")
	require.Contains(t, out.String(), "SELECT 1")
	require.Contains(t, out.String(), "1 records")

	out.Reset()
	require.NoError(t, a.displayRun(&out, &history.Entry{Run: model.Run{ID: "empty"}, FullPath: dir}, nil))
	require.Contains(t, out.String(), "No records found")
}

func TestRecordRun(t *testing.T) {
	resultsDir := t.TempDir()
	a := &App{logger: zerolog.Nop()}
	run := &model.Run{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Workload:  "smoke",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Target:    &model.Target{Backend: "neon", ProjectID: "p1"},
	}

	runDir, err := a.prepareRunDir(resultsDir, run)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(resultsDir, "20240501-120000-0f8fad5b"), runDir)

	workloadPath := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(workloadPath, []byte("name: smoke\n"), 0644))
	require.NoError(t, a.copyWorkload(run, runDir, workloadPath))
	require.NoError(t, a.recordRun(run, runDir))

	entries, err := history.LoadEntries(zerolog.Nop(), resultsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, run.ID, entries[0].Run.ID)
	require.Equal(t, "p1", entries[0].Run.Target.ProjectID)
	require.Equal(t, []model.Artifact{{
		Type: model.ArtifactTypeWorkload,
		Size: uint64(len("name: smoke\n")),
		File: filepath.Join(workloadDir, "smoke.yaml"),
	}}, entries[0].Run.Artifacts)
}
