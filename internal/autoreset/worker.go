package autoreset

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/breach-sim/internal/models"
)

// Simulation is the part of the store the worker drives
type Simulation interface {
	Snapshot() models.Snapshot
	Subscribe(fn func(models.Snapshot)) func()
	ResetSimulation(ctx context.Context) error
}

// Worker restarts the simulation a fixed delay after the mission completes
type Worker struct {
	sim   Simulation
	after time.Duration
}

// NewWorker creates a new auto-restart worker. A non-positive delay disables it.
func NewWorker(sim Simulation, after time.Duration) *Worker {
	return &Worker{
		sim:   sim,
		after: after,
	}
}

// Start begins the worker in a goroutine. The returned channel is closed
// once the worker has stopped, after ctx is cancelled.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if w.after <= 0 {
		slog.Info("auto-restart disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		w.run(ctx)
	}()
	return done
}

// run is the main loop for the auto-restart worker
func (w *Worker) run(ctx context.Context) {
	slog.Info("auto-restart worker started", "after", w.after)

	// Latest wins: the loop re-reads the snapshot, so one pending signal is enough
	changed := make(chan struct{}, 1)
	cancel := w.sim.Subscribe(func(models.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, fire = nil, nil
	}
	defer disarm()

	check := func() {
		complete := w.sim.Snapshot().MissionComplete
		switch {
		case complete && timer == nil:
			timer = time.NewTimer(w.after)
			fire = timer.C
			slog.Info("mission complete, restart scheduled", "after", w.after)
		case !complete && timer != nil:
			disarm()
			slog.Debug("restart cancelled")
		}
	}

	// Progress may already be complete when restored
	check()

	for {
		select {
		case <-ctx.Done():
			slog.Info("auto-restart worker stopped")
			return
		case <-changed:
			check()
		case <-fire:
			timer, fire = nil, nil
			slog.Info("restarting simulation")
			if err := w.sim.ResetSimulation(ctx); err != nil {
				slog.Error("failed to restart simulation", "error", err)
			}
		}
	}
}
