package migration

import (
	"context"
	"time"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// RunInfo identifies a run when it starts.
type RunInfo struct {
	ID          string
	Vendor      string
	Source      k8s.Target
	Destination k8s.Target
	StartedAt   time.Time
}

// Outcome summarizes a finished run.
type Outcome struct {
	State      State
	FailedAt   State
	Artifact   DumpArtifact
	Err        error
	FinishedAt time.Time
}

// Recorder persists the progress of runs. Recorder failures are logged and
// never fail a migration.
type Recorder interface {
	RunStarted(ctx context.Context, run RunInfo) error
	StateChanged(ctx context.Context, runID string, state State) error
	RunFinished(ctx context.Context, runID string, outcome Outcome) error
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(context.Context, RunInfo) error {
	return nil
}

func (nopRecorder) StateChanged(context.Context, string, State) error {
	return nil
}

func (nopRecorder) RunFinished(context.Context, string, Outcome) error {
	return nil
}
