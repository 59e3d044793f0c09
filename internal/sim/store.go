// Package sim implements the simulation state store: scenario selection,
// choice resolution, project unlocks, mission completion and reset, with the
// full progress snapshot persisted after every successful mutation.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/breach-sim/internal/catalog"
	"github.com/terra-clan/breach-sim/internal/config"
	"github.com/terra-clan/breach-sim/internal/models"
	"github.com/terra-clan/breach-sim/internal/storage"
)

// Common errors
var (
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrChoiceNotFound    = errors.New("choice not found")
	ErrScenarioCompleted = errors.New("scenario already completed")
	ErrNotInitialized    = errors.New("simulation not initialized")
)

// IsNotFound reports whether err refers to an id absent from the catalog
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrChoiceNotFound)
}

// CatalogSource supplies the content catalog
type CatalogSource interface {
	Load() (*catalog.Catalog, error)
}

// Option configures a Store
type Option func(*Store)

// WithStorageKey sets the name of the persisted progress record
func WithStorageKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithClock overrides the time source used to stamp persisted records
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger; run_id is added to it
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store owns session progress and is the only place it changes.
// Progress is replaced copy-on-write, so a value handed out is never mutated.
type Store struct {
	mu       sync.RWMutex
	source   CatalogSource
	repo     storage.Repository
	key      string
	runID    string
	now      func() time.Time
	logger   *slog.Logger
	catalog  *catalog.Catalog
	progress models.Progress
	restored bool
	seq      uint64 // bumped on every change to progress

	// notifyMu serializes delivery; snapshots older than delivered are dropped
	notifyMu  sync.Mutex
	delivered uint64

	subMu   sync.Mutex
	subs    map[int]func(models.Snapshot)
	nextSub int
}

// New creates a store. Nothing is loaded until Initialize.
// A nil repository keeps progress in memory only.
func New(source CatalogSource, repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		source:   source,
		repo:     repo,
		key:      config.DefaultStorageKey,
		runID:    uuid.NewString(),
		now:      time.Now,
		logger:   slog.Default(),
		progress: models.NewProgress(),
		subs:     make(map[int]func(models.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("run_id", s.runID)
	return s
}

// RunID identifies this store instance in logs and persisted records
func (s *Store) RunID() string {
	return s.runID
}

// Initialize loads the catalog and restores persisted progress.
// It is idempotent: later calls never touch progress mutated since the first.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog == nil {
		c, err := s.source.Load()
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		s.catalog = c
	}

	if !s.restored {
		s.progress = s.restore(ctx)
		s.restored = true

		s.logger.Info("simulation initialized",
			"scenarios", len(s.catalog.Scenarios()),
			"projects", len(s.catalog.Projects()),
			"completed", len(s.progress.CompletedScenarios),
			"unlocked", len(s.progress.UnlockedProjects),
		)
	}

	return nil
}

// restore loads persisted progress, falling back to empty progress on any failure
func (s *Store) restore(ctx context.Context) models.Progress {
	if s.repo == nil {
		return models.NewProgress()
	}

	rec, err := s.repo.Load(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to restore progress, starting empty", "key", s.key, "error", err)
		return models.NewProgress()
	}
	if rec == nil {
		return models.NewProgress()
	}

	return s.sanitize(rec.Progress())
}

// sanitize drops ids the current catalog does not know and re-establishes
// the progress invariants on restored state
func (s *Store) sanitize(p models.Progress) models.Progress {
	out := models.NewProgress()
	dropped := 0

	for _, id := range p.CompletedScenarios {
		if !s.catalog.HasScenario(id) {
			dropped++
			continue
		}
		out.CompletedScenarios = append(out.CompletedScenarios, id)

		sp := p.Scenarios[id]
		sp.Completed = true
		if sp.UnlockedProject != "" && !s.catalog.HasProject(sp.UnlockedProject) {
			sp.UnlockedProject = ""
		}
		out.Scenarios[id] = sp
	}

	for _, id := range p.UnlockedProjects {
		if !s.catalog.HasProject(id) {
			dropped++
			continue
		}
		out.UnlockedProjects = append(out.UnlockedProjects, id)
	}

	if s.catalog.HasScenario(p.CurrentScenario) && !out.IsCompleted(p.CurrentScenario) {
		out.CurrentScenario = p.CurrentScenario
	} else if p.CurrentScenario != "" {
		dropped++
	}

	if s.catalog.HasProject(p.ShowProject) {
		out.ShowProject = p.ShowProject
	} else if p.ShowProject != "" {
		dropped++
	}

	if dropped > 0 {
		s.logger.Warn("restored progress referenced unknown or invalid ids", "dropped", dropped)
	}

	return out
}

// SelectScenario makes a scenario active. An empty id returns to scenario selection.
func (s *Store) SelectScenario(ctx context.Context, scenarioID string) error {
	return s.mutate(ctx, func(c *catalog.Catalog, p *models.Progress) error {
		if scenarioID == "" {
			p.CurrentScenario = ""
			return nil
		}
		if !c.HasScenario(scenarioID) {
			return fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
		}
		if p.IsCompleted(scenarioID) {
			return fmt.Errorf("%w: %s", ErrScenarioCompleted, scenarioID)
		}

		p.CurrentScenario = scenarioID
		s.logger.Debug("scenario selected", "scenario_id", scenarioID)
		return nil
	})
}

// CompleteScenario marks a scenario completed, records the optional unlocked
// project and shows it. Either every field changes or none does.
func (s *Store) CompleteScenario(ctx context.Context, scenarioID, projectID string) error {
	return s.mutate(ctx, func(c *catalog.Catalog, p *models.Progress) error {
		if !c.HasScenario(scenarioID) {
			return fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
		}
		if projectID != "" && !c.HasProject(projectID) {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}

		wasComplete := p.MissionComplete()

		p.Scenarios[scenarioID] = models.ScenarioProgress{
			Completed:       true,
			UnlockedProject: projectID,
		}
		if projectID != "" && !p.HasUnlocked(projectID) {
			p.UnlockedProjects = append(p.UnlockedProjects, projectID)
		}
		if !p.IsCompleted(scenarioID) {
			p.CompletedScenarios = append(p.CompletedScenarios, scenarioID)
		}
		p.CurrentScenario = ""
		p.ShowProject = projectID

		s.logger.Info("scenario completed",
			"scenario_id", scenarioID,
			"project_id", projectID,
			"completed", len(p.CompletedScenarios),
		)
		if !wasComplete && p.MissionComplete() {
			s.logger.Info("mission complete",
				"completed", len(p.CompletedScenarios),
				"unlocked", len(p.UnlockedProjects),
			)
		}
		return nil
	})
}

// ResolveChoice completes a scenario through one of its choices, unlocking
// whatever project the choice names
func (s *Store) ResolveChoice(ctx context.Context, scenarioID, choiceID string) (models.Choice, error) {
	c, err := s.loadedCatalog()
	if err != nil {
		return models.Choice{}, err
	}

	def, ok := c.Scenario(scenarioID)
	if !ok {
		return models.Choice{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
	}
	choice, ok := def.Choice(choiceID)
	if !ok {
		return models.Choice{}, fmt.Errorf("%w: %s/%s", ErrChoiceNotFound, scenarioID, choiceID)
	}

	if err := s.CompleteScenario(ctx, scenarioID, choice.Unlocks); err != nil {
		return models.Choice{}, err
	}
	return choice, nil
}

// SetShowProject opens a project detail view. An empty id closes it.
// Unknown ids are tolerated and treated as no project.
func (s *Store) SetShowProject(ctx context.Context, projectID string) error {
	return s.mutate(ctx, func(c *catalog.Catalog, p *models.Progress) error {
		if projectID != "" && !c.HasProject(projectID) {
			s.logger.Warn("show requested for unknown project", "project_id", projectID)
			projectID = ""
		}
		p.ShowProject = projectID
		return nil
	})
}

// ResetSimulation clears all session progress, including per-scenario state
func (s *Store) ResetSimulation(ctx context.Context) error {
	return s.mutate(ctx, func(_ *catalog.Catalog, p *models.Progress) error {
		*p = models.NewProgress()
		s.logger.Info("simulation reset")
		return nil
	})
}

// mutate applies fn to a copy of the progress. On success the copy replaces
// the current progress, is persisted and is broadcast to subscribers.
func (s *Store) mutate(ctx context.Context, fn func(c *catalog.Catalog, p *models.Progress) error) error {
	s.mu.Lock()

	if s.catalog == nil {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	next := s.progress.Clone()
	if err := fn(s.catalog, &next); err != nil {
		s.mu.Unlock()
		return err
	}

	s.progress = next
	s.persist(ctx, next)
	s.publish(next)
	return nil
}

// PurgeProgress clears all session progress and deletes the persisted record
// instead of overwriting it
func (s *Store) PurgeProgress(ctx context.Context) error {
	s.mu.Lock()

	if s.catalog == nil {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	next := models.NewProgress()
	s.progress = next

	var err error
	if s.repo != nil {
		if err = s.repo.Delete(ctx, s.key); err != nil {
			err = fmt.Errorf("failed to delete persisted progress: %w", err)
		}
	}
	s.logger.Info("simulation purged", "key", s.key)

	s.publish(next)
	return err
}

// publish stamps p with the next sequence number, releases s.mu and
// broadcasts p; callers hold s.mu
func (s *Store) publish(p models.Progress) {
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.notify(seq, p)
}

// persist writes the snapshot. Failures are logged, never returned:
// in-memory state stays authoritative for the rest of the session.
func (s *Store) persist(ctx context.Context, p models.Progress) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, s.key, models.NewProgressRecord(p, s.runID, s.now())); err != nil {
		s.logger.Error("failed to persist progress", "key", s.key, "error", err)
	}
}

// Subscribe registers fn to receive a snapshot after every successful mutation.
// Snapshots arrive in mutation order; one superseded by a newer change may be skipped.
// fn may read the store but must not mutate it.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func(models.Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(seq uint64, p models.Progress) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	// A later change already went out
	if seq <= s.delivered {
		return
	}
	s.delivered = seq

	s.subMu.Lock()
	fns := make([]func(models.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(p.Snapshot())
	}
}

// --- Queries ---

// Snapshot returns a copy of the current progress
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.Snapshot()
}

// Catalog returns the loaded catalog, or nil before Initialize
func (s *Store) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Scenarios returns every scenario joined with its progress, in catalog order
func (s *Store) Scenarios() []models.ScenarioView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return nil
	}

	defs := s.catalog.Scenarios()
	views := make([]models.ScenarioView, 0, len(defs))
	for _, def := range defs {
		views = append(views, s.view(def))
	}
	return views
}

// Scenario returns a scenario joined with its progress
func (s *Store) Scenario(id string) (models.ScenarioView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return models.ScenarioView{}, false
	}
	def, ok := s.catalog.Scenario(id)
	if !ok {
		return models.ScenarioView{}, false
	}
	return s.view(def), true
}

// CurrentScenario returns the active scenario, if any
func (s *Store) CurrentScenario() (models.ScenarioView, bool) {
	s.mu.RLock()
	id := s.progress.CurrentScenario
	s.mu.RUnlock()

	if id == "" {
		return models.ScenarioView{}, false
	}
	return s.Scenario(id)
}

// CompletedScenarios returns completed scenarios in completion order
func (s *Store) CompletedScenarios() []models.ScenarioView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return nil
	}

	views := make([]models.ScenarioView, 0, len(s.progress.CompletedScenarios))
	for _, id := range s.progress.CompletedScenarios {
		if def, ok := s.catalog.Scenario(id); ok {
			views = append(views, s.view(def))
		}
	}
	return views
}

// Project returns a project by id
func (s *Store) Project(id string) (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return models.Project{}, false
	}
	return s.catalog.Project(id)
}

// UnlockedProjects returns unlocked projects in unlock order
func (s *Store) UnlockedProjects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return nil
	}

	projects := make([]models.Project, 0, len(s.progress.UnlockedProjects))
	for _, id := range s.progress.UnlockedProjects {
		if p, ok := s.catalog.Project(id); ok {
			projects = append(projects, p)
		}
	}
	return projects
}

// IsUnlocked reports whether a project has been unlocked this session
func (s *Store) IsUnlocked(projectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.HasUnlocked(projectID)
}

// ShownProject returns the project whose detail view is open, if any
func (s *Store) ShownProject() (models.Project, bool) {
	s.mu.RLock()
	id := s.progress.ShowProject
	s.mu.RUnlock()

	if id == "" {
		return models.Project{}, false
	}
	return s.Project(id)
}

func (s *Store) loadedCatalog() (*catalog.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil, ErrNotInitialized
	}
	return s.catalog, nil
}

// view joins a definition with its progress; callers hold s.mu
func (s *Store) view(def models.ScenarioDefinition) models.ScenarioView {
	return models.ScenarioView{
		ScenarioDefinition: def,
		Progress:           s.progress.Scenarios[def.ID],
	}
}
