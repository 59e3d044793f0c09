package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terra-clan/breach-sim/internal/sim"
)

// noneArg clears the current scenario or the shown project
const noneArg = "none"

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show simulation progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderStatus(cmd.OutOrStdout(), a.store)
		},
	}
}

func newScenariosCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List scenarios and their choices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderScenarios(cmd.OutOrStdout(), a.store.Scenarios())
		},
	}
}

func newProjectsCommand(a *app) *cobra.Command {
	var unlockedOnly bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects and whether they are unlocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderProjects(cmd.OutOrStdout(), a.store, unlockedOnly)
		},
	}

	cmd.Flags().BoolVar(&unlockedOnly, "unlocked", false, "Only list unlocked projects")

	return cmd
}

func newSelectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <scenario_id|none>",
		Short: "Enter a scenario, or return to scenario selection with none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if id == noneArg {
				id = ""
			}
			if err := a.store.SelectScenario(cmd.Context(), id); err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), a.store)
		},
	}
}

func newChooseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "choose <scenario_id> <choice_id>",
		Short: "Resolve a scenario through one of its choices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			choice, err := a.store.ResolveChoice(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return renderChoiceResult(cmd.OutOrStdout(), a.store, choice)
		},
	}
}

func newCompleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <scenario_id> [project_id]",
		Short: "Mark a scenario completed, optionally unlocking a project",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := ""
			if len(args) == 2 {
				projectID = args[1]
			}
			if err := a.store.CompleteScenario(cmd.Context(), args[0], projectID); err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), a.store)
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project_id|none>",
		Short: "Open a project detail view, or close it with none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == noneArg {
				return a.store.SetShowProject(cmd.Context(), "")
			}

			// Reject unknown ids before touching state
			project, ok := a.store.Project(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", sim.ErrProjectNotFound, args[0])
			}
			if err := a.store.SetShowProject(cmd.Context(), project.ID); err != nil {
				return err
			}
			return renderProject(cmd.OutOrStdout(), project)
		},
	}
}

func newResetCommand(a *app) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reset := a.store.ResetSimulation
			if purge {
				reset = a.store.PurgeProgress
			}
			if err := reset(cmd.Context()); err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), a.store)
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Delete the saved progress record instead of saving an empty one")

	return cmd
}
