package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/breach-sim/internal/catalog"
	"github.com/terra-clan/breach-sim/internal/config"
	"github.com/terra-clan/breach-sim/internal/sim"
	"github.com/terra-clan/breach-sim/internal/storage"
)

var outputFormat string

// app holds what every subcommand needs once the store is up
type app struct {
	cfg   *config.Config
	repo  storage.Repository
	store *sim.Store
}

// newRootCommand builds the CLI around a. The caller closes a after Execute.
func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "breach-sim",
		Short: "breach-sim - a branching cybersecurity scenario simulation",
		Long: `breach-sim walks through security scenarios. Each choice completes its
scenario and may unlock a portfolio project. Completing three scenarios
completes the mission. Progress is saved after every step.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")

	rootCmd.AddCommand(newStatusCommand(a))
	rootCmd.AddCommand(newScenariosCommand(a))
	rootCmd.AddCommand(newProjectsCommand(a))
	rootCmd.AddCommand(newSelectCommand(a))
	rootCmd.AddCommand(newChooseCommand(a))
	rootCmd.AddCommand(newCompleteCommand(a))
	rootCmd.AddCommand(newShowCommand(a))
	rootCmd.AddCommand(newResetCommand(a))
	rootCmd.AddCommand(newPlayCommand(a))

	return rootCmd
}

// open loads configuration, sets up logging and initializes the store
func (a *app) open(cmd *cobra.Command) error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("invalid output format: %q", outputFormat)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	setupLogging(cmd.ErrOrStderr(), cfg.Log)

	initCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	repo, err := storage.Open(initCtx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.repo = repo

	a.store = sim.New(
		catalog.NewLoader(cfg.Catalog.Dir),
		repo,
		sim.WithStorageKey(cfg.Storage.Key),
		sim.WithLogger(slog.Default()),
	)
	if err := a.store.Initialize(initCtx); err != nil {
		return err
	}

	return nil
}

func (a *app) close() error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close()
	a.repo = nil
	if err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// setupLogging installs the structured logger as the default
func setupLogging(w io.Writer, cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
