package migration

import (
	"errors"
	"log/slog"
	"time"

	"github.com/giantswarm/kube-dbmigrate/internal/instrumentation"
	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

type options struct {
	logger          *slog.Logger
	metrics         *instrumentation.Metrics
	recorder        Recorder
	localDir        string
	podReadyTimeout time.Duration
	pollInterval    time.Duration
	cleanup         CleanupPolicy
	now             func() time.Time
	newRunID        func() string
}

func defaultOptions() options {
	return options{
		logger:          slog.Default(),
		recorder:        nopRecorder{},
		localDir:        ".",
		podReadyTimeout: k8s.DefaultPodReadyTimeout,
		pollInterval:    k8s.DefaultPodReadyPollInterval,
		cleanup:         CleanupNone,
		now:             time.Now,
	}
}

// Option is a functional option for configuring a Migrator.
type Option func(*options) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics records run and stage metrics.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}

// WithRecorder persists run progress.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) error {
		if recorder == nil {
			recorder = nopRecorder{}
		}
		o.recorder = recorder
		return nil
	}
}

// WithLocalDir sets the local staging directory. It defaults to the
// current working directory.
func WithLocalDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.New("local directory cannot be empty")
		}
		o.localDir = dir
		return nil
	}
}

// WithPodReadyTimeout bounds how long the source and destination pods
// together may take to become ready.
func WithPodReadyTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return errors.New("pod ready timeout must be positive")
		}
		o.podReadyTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the pod readiness polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return errors.New("poll interval must be positive")
		}
		o.pollInterval = interval
		return nil
	}
}

// WithCleanup sets the cleanup policy applied after a successful run.
func WithCleanup(policy CleanupPolicy) Option {
	return func(o *options) error {
		if _, err := ParseCleanupPolicy(string(policy)); err != nil {
			return err
		}
		o.cleanup = policy
		return nil
	}
}

// WithClock replaces time.Now, which names the local dump file.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// WithRunID fixes the run identifier generator.
func WithRunID(newRunID func() string) Option {
	return func(o *options) error {
		o.newRunID = newRunID
		return nil
	}
}
