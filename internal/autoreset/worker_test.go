package autoreset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/breach-sim/internal/catalog"
	"github.com/terra-clan/breach-sim/internal/models"
	"github.com/terra-clan/breach-sim/internal/sim"
	"github.com/terra-clan/breach-sim/internal/storage"
)

func setupStore(t *testing.T) *sim.Store {
	t.Helper()

	s := sim.New(catalog.NewLoader(""), storage.NewMemoryRepository())
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func completeMission(t *testing.T, s *sim.Store) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.CompleteScenario(ctx, "social-engineering", "social-engineering-toolkit"))
	require.NoError(t, s.CompleteScenario(ctx, "technical-exploitation", "secure-auth-system"))
	require.NoError(t, s.CompleteScenario(ctx, "network-infiltration", "network-monitor"))
	require.True(t, s.Snapshot().MissionComplete)
}

func TestWorkerResetsAfterMissionComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := setupStore(t)
	NewWorker(s, 50*time.Millisecond).Start(ctx)

	completeMission(t, s)

	require.Eventually(t, func() bool {
		return len(s.Snapshot().CompletedScenarios) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.NewProgress().Snapshot(), s.Snapshot())
}

func TestWorkerResetsRestoredCompleteProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := setupStore(t)
	completeMission(t, s)

	NewWorker(s, 20*time.Millisecond).Start(ctx)

	require.Eventually(t, func() bool {
		return !s.Snapshot().MissionComplete
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerDisarmsWhenResetEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := setupStore(t)
	NewWorker(s, 200*time.Millisecond).Start(ctx)

	completeMission(t, s)
	require.NoError(t, s.ResetSimulation(context.Background()))

	// New progress made after the manual reset must survive the old deadline
	require.NoError(t, s.CompleteScenario(context.Background(), "mobile-security", ""))
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, []string{"mobile-security"}, s.Snapshot().CompletedScenarios)
}

func TestWorkerDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := setupStore(t)
	done := NewWorker(s, 0).Start(ctx)
	_, open := <-done
	assert.False(t, open, "a disabled worker reports done at once")

	completeMission(t, s)
	time.Sleep(50 * time.Millisecond)

	assert.True(t, s.Snapshot().MissionComplete)
}

func TestWorkerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := setupStore(t)
	done := NewWorker(s, 100*time.Millisecond).Start(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	completeMission(t, s)
	time.Sleep(250 * time.Millisecond)

	assert.True(t, s.Snapshot().MissionComplete)
}
