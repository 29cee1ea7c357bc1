// Package history loads the manifests of previous benchmark runs from a
// results directory.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/branchbench/branchbench/model"
)

// ManifestFile is the name of the run manifest inside a run directory.
const ManifestFile = "run.json"

// ErrNoRuns is returned when a results directory holds no runs.
var ErrNoRuns = errors.New("no runs found")

type Entry struct {
	Run      model.Run
	FullPath string
}

// LoadEntries loads all run manifests below root, newest first. Manifests
// that fail to parse are skipped with a warning.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoRuns, root)
	}

	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			manifestPath := filepath.Join(path, ManifestFile)
			if _, err := os.Stat(manifestPath); err == nil {
				run, err := parseManifest(manifestPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", manifestPath).Msg("Failed to parse run manifest")
					return nil
				}

				entries = append(entries, Entry{
					Run:      run,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk results directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Run.Timestamp.After(entries[j].Run.Timestamp)
	})

	return entries, nil
}

// Select picks an entry from entries sorted newest first. arg is either an
// index (0 for the latest run, -1 for the one before it and so on) or a
// prefix of the run id.
func Select(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, ErrNoRuns
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d runs)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].Run.ID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no run found matching ID: %s", arg)
}

// RunDirName returns the directory name a run is recorded under.
func RunDirName(run *model.Run) string {
	shortID := strings.ReplaceAll(run.ID, "-", "")
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return fmt.Sprintf("%s-%s", run.Timestamp.Format("20060102-150405"), shortID)
}

func parseManifest(path string) (model.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Run{}, err
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}

	return run, nil
}

// WriteManifest writes run as the manifest of runDir.
func WriteManifest(runDir string, run *model.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write run manifest: %w", err)
	}
	return nil
}
