package models

import (
	"slices"
	"time"
)

// MissionThreshold is the number of distinct completed scenarios that completes the mission
const MissionThreshold = 3

// CurrentSchemaVersion is the version written into every persisted progress record
const CurrentSchemaVersion = 1

// ScenarioProgress holds the per-session state of a single scenario
type ScenarioProgress struct {
	Completed       bool   `json:"completed"`
	UnlockedProject string `json:"unlockedProject,omitempty"`
}

// Progress is the mutable session state of the simulation.
// Empty strings mean "none" for CurrentScenario and ShowProject.
type Progress struct {
	CurrentScenario    string
	CompletedScenarios []string
	UnlockedProjects   []string
	ShowProject        string
	Scenarios          map[string]ScenarioProgress
}

// NewProgress returns empty initial progress
func NewProgress() Progress {
	return Progress{
		CompletedScenarios: []string{},
		UnlockedProjects:   []string{},
		Scenarios:          make(map[string]ScenarioProgress),
	}
}

// MissionComplete is derived from the number of completed scenarios, never stored
func (p Progress) MissionComplete() bool {
	return len(p.CompletedScenarios) >= MissionThreshold
}

// IsCompleted returns true if the scenario has been completed this session
func (p Progress) IsCompleted(scenarioID string) bool {
	return slices.Contains(p.CompletedScenarios, scenarioID)
}

// HasUnlocked returns true if the project has been unlocked this session
func (p Progress) HasUnlocked(projectID string) bool {
	return slices.Contains(p.UnlockedProjects, projectID)
}

// Clone returns a deep copy
func (p Progress) Clone() Progress {
	out := Progress{
		CurrentScenario:    p.CurrentScenario,
		CompletedScenarios: append([]string{}, p.CompletedScenarios...),
		UnlockedProjects:   append([]string{}, p.UnlockedProjects...),
		ShowProject:        p.ShowProject,
		Scenarios:          make(map[string]ScenarioProgress, len(p.Scenarios)),
	}
	for id, sp := range p.Scenarios {
		out.Scenarios[id] = sp
	}
	return out
}

// Snapshot returns a read-only copy of the progress with derived fields filled in
func (p Progress) Snapshot() Snapshot {
	c := p.Clone()
	return Snapshot{
		CurrentScenario:    c.CurrentScenario,
		CompletedScenarios: c.CompletedScenarios,
		UnlockedProjects:   c.UnlockedProjects,
		ShowProject:        c.ShowProject,
		MissionComplete:    c.MissionComplete(),
		Scenarios:          c.Scenarios,
	}
}

// Snapshot is the query view of Progress handed to the presentation layer
type Snapshot struct {
	CurrentScenario    string                      `json:"currentScenario"`
	CompletedScenarios []string                    `json:"completedScenarios"`
	UnlockedProjects   []string                    `json:"unlockedProjects"`
	ShowProject        string                      `json:"showProject"`
	MissionComplete    bool                        `json:"missionComplete"`
	Scenarios          map[string]ScenarioProgress `json:"scenarios"`
}

// ScenarioView joins a scenario definition with its session progress
type ScenarioView struct {
	ScenarioDefinition
	Progress ScenarioProgress `json:"progress"`
}

// Completed returns true if the scenario is completed in the current session
func (v ScenarioView) Completed() bool {
	return v.Progress.Completed
}

// ProgressRecord is the persisted form of Progress
type ProgressRecord struct {
	Version            int                         `json:"version"`
	CurrentScenario    *string                     `json:"currentScenario"`
	CompletedScenarios []string                    `json:"completedScenarios"`
	UnlockedProjects   []string                    `json:"unlockedProjects"`
	ShowProject        *string                     `json:"showProject"`
	MissionComplete    bool                        `json:"missionComplete"`
	Scenarios          map[string]ScenarioProgress `json:"scenarios,omitempty"`
	RunID              string                      `json:"runId,omitempty"`
	UpdatedAt          time.Time                   `json:"updatedAt"`
}

// NewProgressRecord builds a record for the given progress at the current schema version
func NewProgressRecord(p Progress, runID string, now time.Time) *ProgressRecord {
	c := p.Clone()
	return &ProgressRecord{
		Version:            CurrentSchemaVersion,
		CurrentScenario:    optional(c.CurrentScenario),
		CompletedScenarios: c.CompletedScenarios,
		UnlockedProjects:   c.UnlockedProjects,
		ShowProject:        optional(c.ShowProject),
		MissionComplete:    c.MissionComplete(),
		Scenarios:          c.Scenarios,
		RunID:              runID,
		UpdatedAt:          now.UTC(),
	}
}

// Progress converts the record back into session progress.
// Duplicate entries are dropped; MissionComplete is recomputed rather than trusted.
func (r *ProgressRecord) Progress() Progress {
	p := NewProgress()
	if r == nil {
		return p
	}
	if r.CurrentScenario != nil {
		p.CurrentScenario = *r.CurrentScenario
	}
	if r.ShowProject != nil {
		p.ShowProject = *r.ShowProject
	}
	p.CompletedScenarios = appendUnique(p.CompletedScenarios, r.CompletedScenarios...)
	p.UnlockedProjects = appendUnique(p.UnlockedProjects, r.UnlockedProjects...)
	for id, sp := range r.Scenarios {
		p.Scenarios[id] = sp
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}
