package cli

// This file contains Git integration utilities for stamping runs with the
// revision of the workload repository.

import (
	"fmt"
	"os/exec"
	"strings"
)

func gitOutput(args ...string) (string, error) {
	output, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (a *App) getGitInfo() (commit, branch string, err error) {
	commit, err = gitOutput("rev-parse", "HEAD")
	if err != nil {
		return "", "", fmt.Errorf("failed to get git commit: %w", err)
	}

	branch, err = gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", "", fmt.Errorf("failed to get git branch: %w", err)
	}

	return commit, branch, nil
}
