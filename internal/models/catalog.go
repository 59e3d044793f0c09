package models

import "slices"

// ThreatLevel tags how dangerous a project showcase is presented as
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Valid returns true if the threat level is one of the known values
func (t ThreatLevel) Valid() bool {
	switch t {
	case ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical:
		return true
	}
	return false
}

// Project represents a showcase revealed when a scenario unlocks it
type Project struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Scenario       string      `json:"scenario"` // narrative text
	Stack          []string    `json:"stack"`
	DemoURL        string      `json:"demoUrl,omitempty"`
	GithubURL      string      `json:"githubUrl,omitempty"`
	Threat         ThreatLevel `json:"threat"`
	LearningPoints []string    `json:"learningPoints"`
}

// Clone returns a deep copy
func (p Project) Clone() Project {
	p.Stack = slices.Clone(p.Stack)
	p.LearningPoints = slices.Clone(p.LearningPoints)
	return p
}

// ScenarioDefinition is the immutable content of a mission.
// Per-session state lives in ScenarioProgress.
type ScenarioDefinition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Choices     []Choice `json:"choices"`
}

// Clone returns a deep copy
func (s ScenarioDefinition) Clone() ScenarioDefinition {
	s.Choices = slices.Clone(s.Choices)
	return s
}

// Choice returns the choice with the given ID
func (s *ScenarioDefinition) Choice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Choice is one option within a scenario
type Choice struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Consequence string `json:"consequence"`
	Unlocks     string `json:"unlocks,omitempty"` // project ID, empty for none
}
