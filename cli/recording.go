package cli

// This file contains run recording functionality for saving run metadata and
// artifacts to the results directory.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/branchbench/branchbench/history"
	"github.com/branchbench/branchbench/model"
)

const (
	recordsFile = "records.parquet"
	workloadDir = "workload"
)

// prepareRunDir creates <results-dir>/<timestamp>-<id> for run.
func (a *App) prepareRunDir(resultsDir string, run *model.Run) (string, error) {
	runDir := filepath.Join(resultsDir, history.RunDirName(run))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return runDir, nil
}

// addArtifact registers a file below runDir with run, if it exists.
func (a *App) addArtifact(run *model.Run, runDir string, typ model.ArtifactType, file string) {
	info, err := os.Stat(filepath.Join(runDir, file))
	if err != nil {
		a.logger.Debug().Err(err).Str("file", file).Msg("Artifact not found, skipping")
		return
	}
	run.Artifacts = append(run.Artifacts, model.Artifact{
		Type: typ,
		Size: uint64(info.Size()),
		File: file,
	})
}

// copyWorkload keeps a copy of the workload definition next to the results.
func (a *App) copyWorkload(run *model.Run, runDir, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workload: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(runDir, workloadDir), 0755); err != nil {
		return fmt.Errorf("failed to create workload directory: %w", err)
	}
	file := filepath.Join(workloadDir, filepath.Base(path))
	if err := os.WriteFile(filepath.Join(runDir, file), data, 0644); err != nil {
		return fmt.Errorf("failed to copy workload: %w", err)
	}
	a.addArtifact(run, runDir, model.ArtifactTypeWorkload, file)
	return nil
}

func (a *App) recordRun(run *model.Run, runDir string) error {
	if err := history.WriteManifest(runDir, run); err != nil {
		return err
	}
	a.logger.Debug().Str("dir", runDir).Str("id", run.ID).Msg("Recorded run")
	return nil
}
