package cli

// This file contains the list command for displaying previous runs.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/history"
	"github.com/branchbench/branchbench/model"
)

func (a *App) list(ctx *cli.Context) error {
	filterWorkload := ctx.String("workload")
	limit := ctx.Int("limit")

	entries, err := history.LoadEntries(a.logger, ctx.String("results-dir"))
	if errors.Is(err, history.ErrNoRuns) {
		fmt.Println("No runs found")
		fmt.Printf("Runs are saved to %s/<timestamp>-<id>/\n", ctx.String("results-dir"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// Apply workload filter if specified
	var filteredEntries []history.Entry
	for _, entry := range entries {
		if filterWorkload == "" || entry.Run.Workload == filterWorkload {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	if len(filteredEntries) == 0 {
		if filterWorkload != "" {
			fmt.Printf("No runs found for workload: %s\n", filterWorkload)
		} else {
			fmt.Println("No runs found")
		}
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Printf("\n=== Runs (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		r := entry.Run
		timestamp := r.Timestamp.Format("2006-01-02 15:04:05")
		duration := r.Duration.Round(time.Millisecond)

		status := "✓"
		if r.ExitCode != 0 {
			status = "✗"
		}

		fmt.Printf("%s  %s  [%s]  exit=%d  id=%s  workload=%s  records=%d\n",
			status, timestamp, duration, r.ExitCode, shortID(r.ID), r.Workload, r.Records)
		if len(r.Args) > 1 {
			fmt.Printf("   Args: %s\n", strings.Join(r.Args[1:], " "))
		}
		if r.Error != "" {
			fmt.Printf("   Error: %s\n", r.Error)
		}
		if r.Target != nil {
			fmt.Printf("   Target: %s project=%s branch=%s (%s) database=%s driver=%s autocommit=%t\n",
				r.Target.Backend, r.Target.ProjectID, r.Target.BranchName, r.Target.BranchID,
				r.Target.Database, r.Target.Driver, r.Target.Autocommit)
		}
		if r.Git != nil && r.Git.Commit != "" {
			fmt.Printf("   Commit: %s", shortID(r.Git.Commit))
			if r.Git.Branch != "" {
				fmt.Printf(" (%s)", r.Git.Branch)
			}
			fmt.Println()
		}
		for _, artifact := range r.Artifacts {
			fmt.Printf("   %s: %s (%.1f KB)\n", artifactTypeName(artifact.Type), artifact.File, float64(artifact.Size)/1024)
		}
		fmt.Printf("   %s\n", entry.FullPath)
		fmt.Println()
	}

	fmt.Printf("\nView records: %s view <ID>\n", AppName)

	return nil
}

func artifactTypeName(t model.ArtifactType) string {
	switch t {
	case model.ArtifactTypeRecords:
		return "records"
	case model.ArtifactTypeMetrics:
		return "metrics"
	case model.ArtifactTypeWorkload:
		return "workload"
	}
	return "unknown"
}

// shortID returns the first 8 characters of id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
