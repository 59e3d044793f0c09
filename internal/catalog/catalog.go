package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/breach-sim/internal/models"
)

// Catalog is the immutable, ordered set of scenario and project definitions
type Catalog struct {
	scenarios []models.ScenarioDefinition
	projects  []models.Project

	scenarioIndex map[string]int
	projectIndex  map[string]int
}

// ValidationError aggregates every schema violation found in a catalog
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid catalog: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return errors.Join(e.Problems...)
}

// Sentinel problems wrapped by ValidationError
var (
	ErrEmptyCatalog      = errors.New("catalog is empty")
	ErrMissingID         = errors.New("id is required")
	ErrMissingTitle      = errors.New("title is required")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrInvalidThreat     = errors.New("invalid threat level")
	ErrNoChoices         = errors.New("scenario has no choices")
	ErrUnknownUnlock     = errors.New("choice unlocks unknown project")
	ErrDuplicateChoiceID = errors.New("duplicate choice id")
)

// New validates the definitions and builds a catalog from copies of them
func New(scenarios []models.ScenarioDefinition, projects []models.Project) (*Catalog, error) {
	c := &Catalog{
		scenarios:     cloneScenarios(scenarios),
		projects:      cloneProjects(projects),
		scenarioIndex: make(map[string]int, len(scenarios)),
		projectIndex:  make(map[string]int, len(projects)),
	}
	scenarios, projects = c.scenarios, c.projects

	var problems []error

	if len(projects) == 0 {
		problems = append(problems, fmt.Errorf("projects: %w", ErrEmptyCatalog))
	}
	for i, p := range projects {
		switch {
		case p.ID == "":
			problems = append(problems, fmt.Errorf("project #%d: %w", i, ErrMissingID))
			continue
		case hasKey(c.projectIndex, p.ID):
			problems = append(problems, fmt.Errorf("project %q: %w", p.ID, ErrDuplicateID))
			continue
		}
		c.projectIndex[p.ID] = i

		if p.Title == "" {
			problems = append(problems, fmt.Errorf("project %q: %w", p.ID, ErrMissingTitle))
		}
		if !p.Threat.Valid() {
			problems = append(problems, fmt.Errorf("project %q: %w: %q", p.ID, ErrInvalidThreat, p.Threat))
		}
	}

	if len(scenarios) == 0 {
		problems = append(problems, fmt.Errorf("scenarios: %w", ErrEmptyCatalog))
	}
	for i, s := range scenarios {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Errorf("scenario #%d: %w", i, ErrMissingID))
			continue
		case hasKey(c.scenarioIndex, s.ID):
			problems = append(problems, fmt.Errorf("scenario %q: %w", s.ID, ErrDuplicateID))
			continue
		}
		c.scenarioIndex[s.ID] = i

		if s.Title == "" {
			problems = append(problems, fmt.Errorf("scenario %q: %w", s.ID, ErrMissingTitle))
		}
		if len(s.Choices) == 0 {
			problems = append(problems, fmt.Errorf("scenario %q: %w", s.ID, ErrNoChoices))
		}

		seen := make(map[string]bool, len(s.Choices))
		for j, ch := range s.Choices {
			if ch.ID == "" {
				problems = append(problems, fmt.Errorf("scenario %q choice #%d: %w", s.ID, j, ErrMissingID))
				continue
			}
			if seen[ch.ID] {
				problems = append(problems, fmt.Errorf("scenario %q choice %q: %w", s.ID, ch.ID, ErrDuplicateChoiceID))
			}
			seen[ch.ID] = true

			if ch.Unlocks != "" && !hasKey(c.projectIndex, ch.Unlocks) {
				problems = append(problems, fmt.Errorf("scenario %q choice %q: %w: %q", s.ID, ch.ID, ErrUnknownUnlock, ch.Unlocks))
			}
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return c, nil
}

// Scenarios returns copies of the scenario definitions in catalog order
func (c *Catalog) Scenarios() []models.ScenarioDefinition {
	return cloneScenarios(c.scenarios)
}

// Projects returns copies of the project definitions in catalog order
func (c *Catalog) Projects() []models.Project {
	return cloneProjects(c.projects)
}

// Scenario returns a scenario by ID
func (c *Catalog) Scenario(id string) (models.ScenarioDefinition, bool) {
	i, ok := c.scenarioIndex[id]
	if !ok {
		return models.ScenarioDefinition{}, false
	}
	return c.scenarios[i].Clone(), true
}

// Project returns a project by ID
func (c *Catalog) Project(id string) (models.Project, bool) {
	i, ok := c.projectIndex[id]
	if !ok {
		return models.Project{}, false
	}
	return c.projects[i].Clone(), true
}

// HasScenario reports whether the scenario ID is known
func (c *Catalog) HasScenario(id string) bool {
	return hasKey(c.scenarioIndex, id)
}

// HasProject reports whether the project ID is known
func (c *Catalog) HasProject(id string) bool {
	return hasKey(c.projectIndex, id)
}

// Choice returns a choice of a scenario
func (c *Catalog) Choice(scenarioID, choiceID string) (models.Choice, bool) {
	s, ok := c.Scenario(scenarioID)
	if !ok {
		return models.Choice{}, false
	}
	return s.Choice(choiceID)
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

func cloneScenarios(in []models.ScenarioDefinition) []models.ScenarioDefinition {
	out := make([]models.ScenarioDefinition, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func cloneProjects(in []models.Project) []models.Project {
	out := make([]models.Project, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
