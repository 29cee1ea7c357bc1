package cli

// This file contains the branches and project commands talking directly to
// the Neon control plane.

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

func (a *App) branchesList(ctx *cli.Context) error {
	branches, err := a.neonClient(ctx).ListBranches(ctx.Context, ctx.String("project-id"))
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPARENT")
	for _, b := range branches {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.Name, b.ParentID)
	}
	return tw.Flush()
}

func (a *App) branchesDelete(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("no branch id specified")
	}

	client := a.neonClient(ctx)
	projectID := ctx.String("project-id")
	for _, id := range ctx.Args().Slice() {
		if err := client.DeleteBranch(ctx.Context, projectID, id); err != nil {
			return fmt.Errorf("failed to delete branch %s: %w", id, err)
		}
		a.logger.Info().Str("project", projectID).Str("branch_id", id).Msg("Deleted branch")
	}
	return nil
}

func (a *App) projectCreate(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one project name")
	}

	project, err := a.neonClient(ctx).CreateProject(ctx.Context, ctx.Args().First(), ctx.Int("pg-version"))
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	a.logger.Info().Str("project", project.ID).Str("name", project.Name).Msg("Created project")
	fmt.Printf("Project ID: %s\n", project.ID)
	if project.DefaultBranch != nil {
		fmt.Printf("Default branch: %s (%s)\n", project.DefaultBranch.Name, project.DefaultBranch.ID)
	}
	return nil
}

func (a *App) projectDelete(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one project id")
	}

	id := ctx.Args().First()
	if err := a.neonClient(ctx).DeleteProject(ctx.Context, id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	a.logger.Info().Str("project", id).Msg("Deleted project")
	return nil
}
