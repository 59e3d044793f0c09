package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/breach-sim/internal/autoreset"
	"github.com/terra-clan/breach-sim/internal/models"
	"github.com/terra-clan/breach-sim/internal/sim"
)

const playHelp = `Commands:
  list                 list scenarios
  enter <n|id>         enter a scenario
  choose <n|id>        make a choice in the current scenario
  back                 leave the current scenario
  projects             list projects
  show <id>            open a project
  close                close the open project
  status               show progress
  reset                clear all progress
  help                 show this help
  quit                 leave the simulation`

// lockedWriter serializes output from the prompt loop and store notifications
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newPlayCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the simulation interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())

			p := &player{
				store: a.store,
				out:   &lockedWriter{w: cmd.OutOrStdout()},
				after: a.cfg.AutoReset.After,
			}

			unsubscribe := a.store.Subscribe(p.onChange)
			defer unsubscribe()

			done := autoreset.NewWorker(a.store, a.cfg.AutoReset.After).Start(ctx)

			err := p.run(ctx, cmd.InOrStdin())

			// The worker may be mid-reset; let it finish before storage closes
			cancel()
			<-done
			return err
		},
	}
}

// player is one interactive session over the store
type player struct {
	store *sim.Store
	out   io.Writer
	after time.Duration

	mu       sync.Mutex
	complete bool
}

// onChange announces mission completion and restarts as they happen
func (p *player) onChange(snap models.Snapshot) {
	p.mu.Lock()
	was := p.complete
	p.complete = snap.MissionComplete
	p.mu.Unlock()

	switch {
	case !was && snap.MissionComplete:
		fmt.Fprintln(p.out, "*** MISSION COMPLETE ***")
		if p.after > 0 {
			fmt.Fprintf(p.out, "The simulation restarts in %s.\n", p.after)
		}
	case was && !snap.MissionComplete:
		fmt.Fprintln(p.out, "Simulation restarted.")
	}
}

func (p *player) run(ctx context.Context, in io.Reader) error {
	p.mu.Lock()
	p.complete = p.store.Snapshot().MissionComplete
	p.mu.Unlock()

	fmt.Fprintln(p.out, "breach-sim: type help for commands")
	if err := renderStatus(p.out, p.store); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		p.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		quit, err := p.exec(ctx, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (p *player) prompt() {
	if current, ok := p.store.CurrentScenario(); ok {
		fmt.Fprintf(p.out, "[%s]> ", current.ID)
		return
	}
	fmt.Fprint(p.out, "> ")
}

func (p *player) exec(ctx context.Context, verb string, args []string) (bool, error) {
	switch verb {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(p.out, playHelp)
	case "status":
		return false, renderStatus(p.out, p.store)
	case "list", "scenarios":
		return false, renderScenarios(p.out, p.store.Scenarios())
	case "projects":
		return false, renderProjects(p.out, p.store, false)
	case "enter":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: enter <n|id>")
		}
		return false, p.enter(ctx, args[0])
	case "choose":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: choose <n|id>")
		}
		return false, p.choose(ctx, args[0])
	case "back":
		return false, p.store.SelectScenario(ctx, "")
	case "show":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: show <id>")
		}
		project, ok := p.store.Project(args[0])
		if !ok {
			return false, fmt.Errorf("unknown project: %s", args[0])
		}
		if err := p.store.SetShowProject(ctx, project.ID); err != nil {
			return false, err
		}
		return false, renderProject(p.out, project)
	case "close":
		return false, p.store.SetShowProject(ctx, "")
	case "reset":
		if err := p.store.ResetSimulation(ctx); err != nil {
			return false, err
		}
		return false, renderStatus(p.out, p.store)
	default:
		return false, fmt.Errorf("unknown command %q, type help", verb)
	}
	return false, nil
}

func (p *player) enter(ctx context.Context, ref string) error {
	views := p.store.Scenarios()
	id := ref
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(views) {
			return fmt.Errorf("no scenario number %d", n)
		}
		id = views[n-1].ID
	}

	if err := p.store.SelectScenario(ctx, id); err != nil {
		return err
	}

	current, ok := p.store.CurrentScenario()
	if !ok {
		return nil
	}
	fmt.Fprintf(p.out, "%s\n%s\n\n", current.Title, current.Description)
	for i, c := range current.Choices {
		fmt.Fprintf(p.out, "  %d. %s\n     %s\n", i+1, c.Text, c.Description)
	}
	return nil
}

func (p *player) choose(ctx context.Context, ref string) error {
	current, ok := p.store.CurrentScenario()
	if !ok {
		return fmt.Errorf("no active scenario, enter one first")
	}

	choiceID := ref
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(current.Choices) {
			return fmt.Errorf("no choice number %d", n)
		}
		choiceID = current.Choices[n-1].ID
	}

	choice, err := p.store.ResolveChoice(ctx, current.ID, choiceID)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.out, "%s\n", choice.Consequence)
	if project, ok := p.store.ShownProject(); ok {
		fmt.Fprintf(p.out, "Project unlocked: %s (show %s)\n", project.Title, project.ID)
	}
	return nil
}
