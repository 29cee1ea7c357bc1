package model

import "time"

// Run represents a single branchbench execution of a workload.
type Run struct {
	// Unique ID for this run, also the run_id column of its records
	ID string `json:"id"`
	// Name of the workload that was executed
	Workload string `json:"workload"`
	// Timestamp when the run started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Exit code of the run (0 on success)
	ExitCode int `json:"exit_code"`
	// Error message of a failed run
	Error string `json:"error,omitempty"`
	// Duration of the whole run
	Duration time.Duration `json:"duration"`
	// Random seed the workload was run with
	Seed int64 `json:"seed"`
	// Number of records flushed during the run
	Records int `json:"records"`
	// Git information of the working directory, if any
	Git *Git `json:"git,omitempty"`
	// Database the run was executed against
	Target *Target `json:"target,omitempty"`
	// Artifacts generated during this run
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// Target describes the branchable database a run talked to.
type Target struct {
	Backend   string `json:"backend"`
	ProjectID string `json:"project_id,omitempty"`
	// Branch the session was opened on
	BranchName string `json:"branch_name,omitempty"`
	BranchID   string `json:"branch_id,omitempty"`
	Database   string `json:"database,omitempty"`
	Driver     string `json:"driver,omitempty"`
	Autocommit bool   `json:"autocommit"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeRecords ArtifactType = iota
	ArtifactTypeMetrics
	ArtifactTypeWorkload
)

// Artifact represents a file generated during execution
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}
