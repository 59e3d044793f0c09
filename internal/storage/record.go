package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/terra-clan/breach-sim/internal/models"
)

// EncodeRecord serializes a progress record
func EncodeRecord(rec *models.ProgressRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a persisted progress record, migrating older layouts
// to models.CurrentSchemaVersion.
//
// Version 0 has no version field of its own and comes either flat or wrapped
// in a {"state": ..., "version": 0} envelope, with per-scenario flags kept in
// a "scenarios" array.
func DecodeRecord(data []byte) (*models.ProgressRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedRecord)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}

	if state, ok := probe["state"]; ok {
		return decodeLegacy(state)
	}

	version := 0
	if raw, ok := probe["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, fmt.Errorf("%w: version: %v", ErrMalformedRecord, err)
		}
	}

	switch {
	case version == 0:
		return decodeLegacy(data)
	case version > models.CurrentSchemaVersion:
		return nil, fmt.Errorf("%w: %d (current %d)", ErrUnsupportedVersion, version, models.CurrentSchemaVersion)
	case version < 0:
		return nil, fmt.Errorf("%w: negative version %d", ErrMalformedRecord, version)
	}

	var rec models.ProgressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return normalize(&rec), nil
}

// legacyState is the version 0 layout
type legacyState struct {
	CurrentScenario    *string          `json:"currentScenario"`
	CompletedScenarios []string         `json:"completedScenarios"`
	UnlockedProjects   []string         `json:"unlockedProjects"`
	ShowProject        *string          `json:"showProject"`
	MissionComplete    bool             `json:"missionComplete"`
	Scenarios          []legacyScenario `json:"scenarios"`
}

// legacyScenario carries the per-session flags embedded in version 0 scenario records
type legacyScenario struct {
	ID              string `json:"id"`
	Completed       bool   `json:"completed"`
	UnlockedProject string `json:"unlockedProject"`
}

func decodeLegacy(data []byte) (*models.ProgressRecord, error) {
	var st legacyState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: legacy layout: %v", ErrMalformedRecord, err)
	}

	rec := &models.ProgressRecord{
		Version:            models.CurrentSchemaVersion,
		CurrentScenario:    st.CurrentScenario,
		CompletedScenarios: st.CompletedScenarios,
		UnlockedProjects:   st.UnlockedProjects,
		ShowProject:        st.ShowProject,
		Scenarios:          make(map[string]models.ScenarioProgress),
	}

	for _, s := range st.Scenarios {
		if s.ID == "" || !s.Completed {
			continue
		}
		rec.Scenarios[s.ID] = models.ScenarioProgress{
			Completed:       true,
			UnlockedProject: s.UnlockedProject,
		}
	}

	return normalize(rec), nil
}

// normalize fills in per-scenario entries missing for completed scenarios
// and recomputes the derived mission flag
func normalize(rec *models.ProgressRecord) *models.ProgressRecord {
	if rec.Scenarios == nil {
		rec.Scenarios = make(map[string]models.ScenarioProgress)
	}
	for _, id := range rec.CompletedScenarios {
		if _, ok := rec.Scenarios[id]; !ok {
			rec.Scenarios[id] = models.ScenarioProgress{Completed: true}
		}
	}
	rec.MissionComplete = rec.Progress().MissionComplete()
	return rec
}
