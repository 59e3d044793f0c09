package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/terra-clan/breach-sim/internal/models"
	"github.com/terra-clan/breach-sim/internal/sim"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orNone(s string) string {
	if s == "" {
		return noneArg
	}
	return s
}

func renderStatus(w io.Writer, store *sim.Store) error {
	snap := store.Snapshot()
	if outputFormat == "json" {
		return writeJSON(w, snap)
	}

	fmt.Fprintf(w, "Progress:  %d/%d scenarios completed (%d complete the mission)\n",
		len(snap.CompletedScenarios), len(store.Catalog().Scenarios()), models.MissionThreshold)
	fmt.Fprintf(w, "Current:   %s\n", orNone(snap.CurrentScenario))
	if len(snap.UnlockedProjects) > 0 {
		fmt.Fprintf(w, "Unlocked:  %s\n", strings.Join(snap.UnlockedProjects, ", "))
	} else {
		fmt.Fprintf(w, "Unlocked:  %s\n", noneArg)
	}
	fmt.Fprintf(w, "Showing:   %s\n", orNone(snap.ShowProject))
	if snap.MissionComplete {
		fmt.Fprintln(w, "MISSION COMPLETE")
	}
	return nil
}

func renderScenarios(w io.Writer, views []models.ScenarioView) error {
	if outputFormat == "json" {
		return writeJSON(w, views)
	}

	for _, v := range views {
		mark := " "
		if v.Completed() {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s  %s\n", mark, v.ID, v.Title)
		for _, c := range v.Choices {
			unlock := ""
			if c.Unlocks != "" {
				unlock = " -> " + c.Unlocks
			}
			fmt.Fprintf(w, "      %s: %s%s\n", c.ID, c.Text, unlock)
		}
	}
	return nil
}

func renderProjects(w io.Writer, store *sim.Store, unlockedOnly bool) error {
	var projects []models.Project
	if unlockedOnly {
		projects = store.UnlockedProjects()
	} else {
		projects = store.Catalog().Projects()
	}

	if outputFormat == "json" {
		return writeJSON(w, projects)
	}

	for _, p := range projects {
		state := "locked"
		if store.IsUnlocked(p.ID) {
			state = "unlocked"
		}
		fmt.Fprintf(w, "%-28s %-9s %-8s %s\n", p.ID, p.Threat, state, p.Title)
	}
	return nil
}

func renderProject(w io.Writer, p models.Project) error {
	if outputFormat == "json" {
		return writeJSON(w, p)
	}

	fmt.Fprintf(w, "%s [%s threat]\n", p.Title, strings.ToUpper(string(p.Threat)))
	fmt.Fprintf(w, "%s\n\n", p.Description)
	fmt.Fprintf(w, "Scenario: %s\n", p.Scenario)
	fmt.Fprintf(w, "Stack:    %s\n", strings.Join(p.Stack, ", "))
	if p.DemoURL != "" {
		fmt.Fprintf(w, "Demo:     %s\n", p.DemoURL)
	}
	if p.GithubURL != "" {
		fmt.Fprintf(w, "Source:   %s\n", p.GithubURL)
	}
	if len(p.LearningPoints) > 0 {
		fmt.Fprintln(w, "Learning points:")
		for _, lp := range p.LearningPoints {
			fmt.Fprintf(w, "  - %s\n", lp)
		}
	}
	return nil
}

func renderChoiceResult(w io.Writer, store *sim.Store, choice models.Choice) error {
	if outputFormat == "json" {
		return writeJSON(w, struct {
			Choice   models.Choice   `json:"choice"`
			Snapshot models.Snapshot `json:"snapshot"`
		}{choice, store.Snapshot()})
	}

	fmt.Fprintf(w, "%s\n\n", choice.Consequence)
	if project, ok := store.ShownProject(); ok {
		fmt.Fprintf(w, "Project unlocked: %s\n\n", project.Title)
	}
	return renderStatus(w, store)
}
