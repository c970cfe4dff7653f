package k8s

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrContextNotFound indicates that a kube context is not defined in the
	// loaded kubeconfig.
	ErrContextNotFound = errors.New("kube context not found")

	// ErrPodNotReady indicates that a pod did not become ready in time.
	ErrPodNotReady = errors.New("pod not ready")

	// ErrStreamFailed marks an exec stream that could not be established or
	// broke before the remote command reported an exit status.
	ErrStreamFailed = errors.New("exec stream failed")
)

// PodNotReadyError provides details about a readiness timeout.
type PodNotReadyError struct {
	Target    Target
	Timeout   time.Duration
	LastPhase string
	Err       error
}

// Error implements the error interface.
func (e *PodNotReadyError) Error() string {
	phase := e.LastPhase
	if phase == "" {
		phase = "unknown"
	}
	return fmt.Sprintf("pod %s/%s in context %q not ready after %s (last phase: %s)",
		e.Target.Namespace, e.Target.Pod, e.Target.Context, e.Timeout, phase)
}

// Is matches ErrPodNotReady.
func (e *PodNotReadyError) Is(target error) bool {
	return target == ErrPodNotReady
}

// Unwrap returns the underlying polling error.
func (e *PodNotReadyError) Unwrap() error {
	return e.Err
}
