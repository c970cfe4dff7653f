package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// Failure classes. Every error returned by Migrator.Run matches exactly one
// of them with errors.Is.
var (
	// ErrPrecondition covers invalid input, pods that never became ready,
	// missing staging directories and insufficient space.
	ErrPrecondition = errors.New("precondition failed")

	// ErrIntegrity indicates a dump whose digests could not be computed or
	// did not match across hops. Such a dump is never restored.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrTransport indicates that a remote call could not be completed.
	ErrTransport = errors.New("transport failure")

	// ErrVendorCommand indicates that the dump or restore utility exited
	// non-zero.
	ErrVendorCommand = errors.New("vendor command failed")
)

var (
	// ErrUnknownVendor is returned by StrategyFor for unsupported vendors.
	ErrUnknownVendor = errors.New("unknown database vendor")

	// ErrMissingCluster is returned by New when no cluster client is given.
	ErrMissingCluster = errors.New("cluster client is required")

	// ErrMissingStrategy is returned by New when no vendor strategy is given.
	ErrMissingStrategy = errors.New("vendor strategy is required")
)

// StageError describes the stage at which a migration failed and the objects
// involved. Kind is one of the failure classes above.
type StageError struct {
	Stage  State
	Target k8s.Target
	Path   string
	Kind   error
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration failed at stage %s", e.Stage)
	if e.Target.Pod != "" {
		fmt.Fprintf(&b, " (pod %s/%s in context %q", e.Target.Namespace, e.Target.Pod, e.Target.Context)
		if e.Path != "" {
			fmt.Fprintf(&b, ", path %s", e.Path)
		}
		b.WriteString(")")
	} else if e.Path != "" {
		fmt.Fprintf(&b, " (path %s)", e.Path)
	}
	if e.Kind != nil {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the failure class.
func (e *StageError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// classify returns ErrTransport for broken streams and cancelled contexts,
// and fallback otherwise.
func classify(err error, fallback error) error {
	if errors.Is(err, k8s.ErrStreamFailed) || errors.Is(err, context.Canceled) {
		return ErrTransport
	}
	return fallback
}
