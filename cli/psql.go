package cli

// This file contains the psql command running SQL files through the external
// psql client, e.g. to load a dataset before a run.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/results"
)

const psqlBinary = "psql"

// buildPsqlArgs returns the psql arguments to run file against uri, stopping
// at the first error.
func buildPsqlArgs(uri, file string) []string {
	return []string{
		"--no-psqlrc",
		"--set", "ON_ERROR_STOP=1",
		"--file", file,
		uri,
	}
}

// psqlCommandString renders the psql invocation for logging, with any
// password in the connection URI redacted.
func psqlCommandString(args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, psqlBinary)

	for _, arg := range args {
		if u, err := url.Parse(arg); err == nil && u.Scheme != "" && u.User != nil {
			arg = u.Redacted()
		}
		parts = append(parts, shellescape.Quote(arg))
	}

	return strings.Join(parts, " ")
}

func (a *App) psql(ctx *cli.Context) error {
	file := ctx.String("file")
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("failed to access sql file: %w", err)
	}

	// setup statements are not measured
	s, err := a.openSession(ctx, results.NewRecorder(a.logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close session")
		}
	}()

	if branch := ctx.String("branch"); branch != "" {
		if err := s.ConnectBranch(ctx.Context, branch, false); err != nil {
			return fmt.Errorf("failed to connect to branch %s: %w", branch, err)
		}
	}

	args := buildPsqlArgs(s.SetupURI(), file)
	a.logger.Info().Str("command", psqlCommandString(args)).Msg("Running psql")

	return a.executeLocalCommand(ctx.Context, psqlBinary, args)
}

func (a *App) executeLocalCommand(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderrBuf bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			a.logger.Debug().Str("stderr", stderrBuf.String()).Msg("Command output")
			return fmt.Errorf("%s failed with exit code %d", name, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to execute %s: %w", name, err)
	}

	a.logger.Info().Str("command", name).Msg("Command completed successfully")
	return nil
}
