package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/breach-sim/internal/models"
)

//go:embed content
var builtin embed.FS

// Loader loads and caches the content catalog
type Loader struct {
	mu      sync.RWMutex
	dir     string
	catalog *Catalog
}

// NewLoader creates a loader for the given directory.
// An empty dir selects the built-in content.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load returns the catalog, loading it on first use
func (l *Loader) Load() (*Catalog, error) {
	l.mu.RLock()
	c := l.catalog
	l.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.catalog != nil {
		return l.catalog, nil
	}

	var err error
	if l.dir == "" {
		c, err = Default()
	} else {
		c, err = LoadFromDir(l.dir)
	}
	if err != nil {
		return nil, err
	}

	l.catalog = c
	return c, nil
}

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	sub, err := fs.Sub(builtin, "content")
	if err != nil {
		return nil, fmt.Errorf("failed to open built-in content: %w", err)
	}
	return LoadFromFS(sub)
}

// LoadFromDir loads a catalog from a directory on disk
func LoadFromDir(dir string) (*Catalog, error) {
	slog.Info("loading catalog from directory", "dir", dir)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}

	return LoadFromFS(os.DirFS(dir))
}

// LoadFromFS loads projects/*.yaml and scenarios/*.yaml from fsys.
// Each file holds one record; records are ordered by their order field, then by file name.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	var projectFiles []projectFile
	if err := readRecords(fsys, "projects", &projectFiles); err != nil {
		return nil, err
	}

	var scenarioFiles []scenarioFile
	if err := readRecords(fsys, "scenarios", &scenarioFiles); err != nil {
		return nil, err
	}

	sort.SliceStable(projectFiles, func(i, j int) bool {
		return projectFiles[i].Order < projectFiles[j].Order
	})
	sort.SliceStable(scenarioFiles, func(i, j int) bool {
		return scenarioFiles[i].Order < scenarioFiles[j].Order
	})

	projects := make([]models.Project, 0, len(projectFiles))
	for _, pf := range projectFiles {
		projects = append(projects, pf.toModel())
	}

	scenarios := make([]models.ScenarioDefinition, 0, len(scenarioFiles))
	for _, sf := range scenarioFiles {
		scenarios = append(scenarios, sf.toModel())
	}

	c, err := New(scenarios, projects)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog loaded", "scenarios", len(scenarios), "projects", len(projects))
	return c, nil
}

// readRecords decodes every YAML file under dir, in file-name order
func readRecords[T any](fsys fs.FS, dir string, out *[]T) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read %s dir: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		file := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		var rec T
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}
		*out = append(*out, rec)
	}

	return nil
}

// --- YAML file structs ---

// projectFile represents the YAML structure of a project file
type projectFile struct {
	Order          int      `yaml:"order"`
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Scenario       string   `yaml:"scenario"`
	Stack          []string `yaml:"stack"`
	DemoURL        string   `yaml:"demo_url"`
	GithubURL      string   `yaml:"github_url"`
	Threat         string   `yaml:"threat"`
	LearningPoints []string `yaml:"learning_points"`
}

func (f projectFile) toModel() models.Project {
	return models.Project{
		ID:             f.ID,
		Title:          f.Title,
		Description:    f.Description,
		Scenario:       f.Scenario,
		Stack:          f.Stack,
		DemoURL:        f.DemoURL,
		GithubURL:      f.GithubURL,
		Threat:         models.ThreatLevel(f.Threat),
		LearningPoints: f.LearningPoints,
	}
}

// scenarioFile represents the YAML structure of a scenario file
type scenarioFile struct {
	Order       int          `yaml:"order"`
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Icon        string       `yaml:"icon"`
	Choices     []choiceFile `yaml:"choices"`
}

// choiceFile represents a choice entry inside a scenario file
type choiceFile struct {
	ID          string `yaml:"id"`
	Text        string `yaml:"text"`
	Description string `yaml:"description"`
	Consequence string `yaml:"consequence"`
	Unlocks     string `yaml:"unlocks"`
}

func (f scenarioFile) toModel() models.ScenarioDefinition {
	choices := make([]models.Choice, 0, len(f.Choices))
	for _, c := range f.Choices {
		choices = append(choices, models.Choice{
			ID:          c.ID,
			Text:        c.Text,
			Description: c.Description,
			Consequence: c.Consequence,
			Unlocks:     c.Unlocks,
		})
	}
	return models.ScenarioDefinition{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Icon:        f.Icon,
		Choices:     choices,
	}
}
