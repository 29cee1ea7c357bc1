package cli

// This file contains the run command executing a workload against Neon.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/results"
	"github.com/branchbench/branchbench/workload"
)

const metricsFile = "metrics.prom"

func (a *App) run(ctx *cli.Context) error {
	startTime := time.Now()

	workloadPath := ctx.String("workload")
	w, err := workload.Load(workloadPath)
	if err != nil {
		return err
	}
	if ctx.IsSet("seed") {
		w.Seed = ctx.Int64("seed")
	}

	run := &model.Run{
		ID:        uuid.NewString(),
		Workload:  w.Name,
		Timestamp: startTime,
		Args:      os.Args,
		Seed:      w.Seed,
		Target:    target(ctx),
	}

	// Capture git info (non-fatal if it fails)
	if commit, branch, err := a.getGitInfo(); err == nil {
		run.Git = &model.Git{
			Commit: commit,
			Branch: branch,
		}
	}

	runDir, err := a.prepareRunDir(ctx.String("results-dir"), run)
	if err != nil {
		return err
	}

	metrics := results.NewMetrics()
	recorder := results.NewRecorder(a.logger, results.WithRunID(run.ID), results.WithMetrics(metrics))

	var finalErr error
	defer func() {
		run.Duration = time.Since(startTime)
		run.Records = recorder.Len()
		if finalErr != nil {
			run.ExitCode = 1
			run.Error = finalErr.Error()
		}

		// Record the run (non-fatal if it fails)
		if err := a.recordRun(run, runDir); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record run")
		}
	}()

	if err := a.copyWorkload(run, runDir, workloadPath); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to copy workload")
	}

	s, err := a.openSession(ctx, recorder)
	if err != nil {
		finalErr = err
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close session")
		}
	}()

	a.logger.Info().
		Str("workload", w.Name).
		Int("repeat", w.Repeat).
		Str("id", run.ID).
		Msg("Running workload")

	// Results gathered before a failing step are still exported
	runErr := workload.NewRunner(a.logger, s).Run(ctx.Context, w)

	if err := recorder.Export(filepath.Join(runDir, recordsFile)); err != nil {
		a.logger.Error().Err(err).Msg("Failed to export results")
		if runErr == nil {
			runErr = err
		}
	}
	a.addArtifact(run, runDir, model.ArtifactTypeRecords, recordsFile)

	if ctx.IsSet("metrics-file") {
		path := ctx.String("metrics-file")
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write metrics file")
		}
		// a copy always lives with the run
		if err := metrics.WriteTextfile(filepath.Join(runDir, metricsFile)); err == nil {
			a.addArtifact(run, runDir, model.ArtifactTypeMetrics, metricsFile)
		}
	}

	if runErr != nil {
		finalErr = fmt.Errorf("workload %s failed: %w", w.Name, runErr)
		return finalErr
	}

	a.logger.Info().
		Int("records", recorder.Len()).
		Str("dir", runDir).
		Msg("Run recorded")
	return nil
}
