package cli

// This file contains the view command for displaying the records of a run.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/history"
	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/results"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseViewArgs splits the arguments into the run ID/index and the operation
// type filters.
func parseViewArgs(in []string) (idArg string, opArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are filters
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is: "-" followed by only digits (e.g., "-1", "-2")
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

// parseOpFilter turns operation type names into a set. An empty set matches
// every record.
func parseOpFilter(args []string) (map[model.OpType]bool, error) {
	filter := map[model.OpType]bool{}
	for _, arg := range args {
		op := model.ParseOpType(strings.TrimLeft(arg, "-"))
		if op == model.OpTypeUnspecified && !strings.EqualFold(strings.TrimLeft(arg, "-"), model.OpTypeUnspecified.String()) {
			return nil, fmt.Errorf("unknown operation type: %s", arg)
		}
		filter[op] = true
	}
	return filter, nil
}

func (a *App) view(ctx *cli.Context) error {
	arg, opArgs := parseViewArgs(ctx.Args().Slice())

	filter, err := parseOpFilter(opArgs)
	if err != nil {
		return err
	}

	entries, err := history.LoadEntries(a.logger, ctx.String("results-dir"))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	entry, err := history.Select(entries, arg)
	if err != nil {
		return err
	}

	return a.displayRun(os.Stdout, entry, filter)
}

func (a *App) displayRun(out io.Writer, entry *history.Entry, filter map[model.OpType]bool) error {
	r := entry.Run

	fmt.Fprintf(out, "=== Run: %s ===\n", shortID(r.ID))
	fmt.Fprintf(out, "Workload: %s\n", r.Workload)
	fmt.Fprintf(out, "Time: %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Duration: %s\n", r.Duration)
	fmt.Fprintf(out, "Exit Code: %d\n", r.ExitCode)
	fmt.Fprintf(out, "Seed: %d\n", r.Seed)
	if r.Git != nil && r.Git.Commit != "" {
		fmt.Fprintf(out, "Git Commit: %s", shortID(r.Git.Commit))
		if r.Git.Branch != "" {
			fmt.Fprintf(out, " (%s)", r.Git.Branch)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	var recordsArtifact *model.Artifact
	for i := range r.Artifacts {
		if r.Artifacts[i].Type == model.ArtifactTypeRecords {
			recordsArtifact = &r.Artifacts[i]
		}
	}
	if recordsArtifact == nil {
		fmt.Fprintln(out, "No records found")
		fmt.Fprintf(out, "Run directory: %s\n", entry.FullPath)
		return nil
	}

	records, err := results.ReadRecords(filepath.Join(entry.FullPath, recordsArtifact.File))
	if err != nil {
		return err
	}
	return printRecords(out, records, filter)
}

func printRecords(out io.Writer, records []model.Record, filter map[model.OpType]bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tOP\tLATENCY\tKEYS\tTABLE\tQUERY")

	var total time.Duration
	shown := 0
	for _, rec := range records {
		if len(filter) > 0 && !filter[rec.OpType] {
			continue
		}
		latency := time.Duration(rec.Latency * float64(time.Second))
		total += latency
		shown++
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			rec.IterationNumber, rec.OpType, latency.Round(time.Microsecond), rec.NumKeysTouched, rec.TableName, oneLine(rec.SQLQuery))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if shown > 0 {
		fmt.Fprintf(out, "\n%d records, mean latency %s\n", shown, (total / time.Duration(shown)).Round(time.Microsecond))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
