package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/breach-sim/internal/config"
	"github.com/terra-clan/breach-sim/internal/models"
	"github.com/terra-clan/breach-sim/internal/sim"
)

func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("SIM_STORAGE_BACKEND", "file")
	t.Setenv("SIM_DATA_DIR", dir)
	t.Setenv("SIM_CATALOG_DIR", "")
	t.Setenv("SIM_AUTORESET_AFTER", "0")
	t.Setenv("SIM_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	a := &app{}
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func statusJSON(t *testing.T) models.Snapshot {
	t.Helper()

	out, err := runCLI(t, "", "status", "-o", "json")
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	return snap
}

func TestStatusEmpty(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "0/4 scenarios completed (3 complete the mission)")
	assert.NotContains(t, out, "MISSION COMPLETE")
}

func TestProgressPersistsAcrossInvocations(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "", "complete", "social-engineering", "social-engineering-toolkit")
	require.NoError(t, err)

	out, err := runCLI(t, "", "choose", "technical-exploitation", "manual-testing")
	require.NoError(t, err)
	assert.Contains(t, out, "Project unlocked: Multi-Factor Authentication Portal")

	_, err = runCLI(t, "", "select", "network-infiltration")
	require.NoError(t, err)

	snap := statusJSON(t)
	assert.Equal(t, []string{"social-engineering", "technical-exploitation"}, snap.CompletedScenarios)
	assert.Equal(t, []string{"social-engineering-toolkit", "secure-auth-system"}, snap.UnlockedProjects)
	assert.Equal(t, "network-infiltration", snap.CurrentScenario)
	assert.False(t, snap.MissionComplete)

	out, err = runCLI(t, "", "complete", "network-infiltration")
	require.NoError(t, err)
	assert.Contains(t, out, "MISSION COMPLETE")

	_, err = runCLI(t, "", "reset")
	require.NoError(t, err)
	assert.Equal(t, models.NewProgress().Snapshot(), statusJSON(t))
}

func TestResetPurge(t *testing.T) {
	dir := setupEnv(t)
	record := filepath.Join(dir, config.DefaultStorageKey+".json")

	_, err := runCLI(t, "", "complete", "social-engineering", "social-engineering-toolkit")
	require.NoError(t, err)
	require.FileExists(t, record)

	out, err := runCLI(t, "", "reset", "--purge")
	require.NoError(t, err)
	assert.Contains(t, out, "0/4 scenarios completed")
	assert.NoFileExists(t, record)

	// A plain reset saves an empty record
	_, err = runCLI(t, "", "reset")
	require.NoError(t, err)
	assert.FileExists(t, record)
	assert.Empty(t, statusJSON(t).CompletedScenarios)
}

func TestCommandErrors(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "", "select", "ghost")
	assert.ErrorIs(t, err, sim.ErrScenarioNotFound)

	_, err = runCLI(t, "", "complete", "mobile-security", "ghost")
	assert.ErrorIs(t, err, sim.ErrProjectNotFound)

	_, err = runCLI(t, "", "choose", "mobile-security", "ghost")
	assert.ErrorIs(t, err, sim.ErrChoiceNotFound)

	_, err = runCLI(t, "", "complete", "mobile-security")
	require.NoError(t, err)
	_, err = runCLI(t, "", "select", "mobile-security")
	assert.ErrorIs(t, err, sim.ErrScenarioCompleted)

	_, err = runCLI(t, "", "status", "-o", "yaml")
	assert.Error(t, err)
}

func TestShowCommand(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "", "show", "network-monitor")
	require.NoError(t, err)
	assert.Contains(t, out, "Real-time Network Security Monitor")
	assert.Contains(t, out, "CRITICAL")
	assert.Equal(t, "network-monitor", statusJSON(t).ShowProject)

	// An unknown id fails without closing the open project
	_, err = runCLI(t, "", "show", "ghost")
	assert.ErrorIs(t, err, sim.ErrProjectNotFound)
	assert.Equal(t, "network-monitor", statusJSON(t).ShowProject)

	_, err = runCLI(t, "", "show", "network-monitor")
	require.NoError(t, err)
	_, err = runCLI(t, "", "show", "none")
	require.NoError(t, err)
	assert.Empty(t, statusJSON(t).ShowProject)
}

func TestListCommands(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "", "complete", "mobile-security", "mobile-security-scanner")
	require.NoError(t, err)

	out, err := runCLI(t, "", "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] mobile-security")
	assert.Contains(t, out, "[ ] social-engineering")
	assert.Contains(t, out, "spear-phishing")

	out, err = runCLI(t, "", "projects", "--unlocked", "-o", "json")
	require.NoError(t, err)
	var projects []models.Project
	require.NoError(t, json.Unmarshal([]byte(out), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "mobile-security-scanner", projects[0].ID)

	out, err = runCLI(t, "", "projects")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, " unlocked "))
}

func TestPlay(t *testing.T) {
	setupEnv(t)

	script := strings.Join([]string{
		"help",
		"enter 1",
		"choose 3",
		"show social-engineering-toolkit",
		"show ghost",
		"status",
		"close",
		"enter technical-exploitation",
		"choose 9",
		"choose automated-scan",
		"enter 1",
		"bogus",
		"enter 3",
		"choose 2",
		"quit",
		"status",
	}, "\n")

	out, err := runCLI(t, script, "play")
	require.NoError(t, err)

	assert.Contains(t, out, "Social Engineering Campaign")
	assert.Contains(t, out, "Project unlocked: Security Awareness Training Platform")
	assert.Contains(t, out, "error: no choice number 9")
	assert.Contains(t, out, "scenario already completed")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, "error: unknown project: ghost")
	assert.Contains(t, out, "Showing:   social-engineering-toolkit")
	assert.Contains(t, out, "*** MISSION COMPLETE ***")

	snap := statusJSON(t)
	assert.Equal(t, []string{"social-engineering", "technical-exploitation", "network-infiltration"}, snap.CompletedScenarios)
	assert.Equal(t, []string{"social-engineering-toolkit", "network-monitor"}, snap.UnlockedProjects)
	assert.Empty(t, snap.CurrentScenario)
	assert.True(t, snap.MissionComplete)
}

func TestPlayEndsOnEOF(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "enter 2\n", "play")
	require.NoError(t, err)
	assert.Contains(t, out, "[technical-exploitation]> ")
	assert.Equal(t, "technical-exploitation", statusJSON(t).CurrentScenario)
}
