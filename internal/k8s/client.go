package k8s

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client defines the cluster operations needed by the migration pipeline.
type Client interface {
	// Context Management Operations
	ContextManager

	// Pod Operations
	PodManager
}

// ContextManager handles kubeconfig context operations.
type ContextManager interface {
	// ListContexts returns all contexts defined in the kubeconfig.
	ListContexts(ctx context.Context) ([]ContextInfo, error)

	// CurrentContext returns the kubeconfig's current context name.
	CurrentContext() string

	// ResolveContext checks that the named context exists and that a client
	// can be built for it. An empty name resolves the current context.
	ResolveContext(ctx context.Context, contextName string) (*ContextInfo, error)
}

// PodManager handles pod-specific operations.
type PodManager interface {
	CommandExecutor

	// Download copies remotePath from the target pod to localPath,
	// creating or truncating localPath. It returns the number of bytes written.
	Download(ctx context.Context, target Target, remotePath, localPath string) (int64, error)

	// Upload copies localPath to remotePath in the target pod, creating or
	// truncating remotePath. It returns the number of bytes sent.
	Upload(ctx context.Context, target Target, localPath, remotePath string) (int64, error)

	// WaitForPodReady blocks until the target pod is running and ready, or
	// the timeout elapses.
	WaitForPodReady(ctx context.Context, target Target, opts WaitOptions) error
}

// CommandExecutor runs a shell command inside a pod.
type CommandExecutor interface {
	// Exec runs command through DefaultShell in the target pod. A returned
	// error means the command could not be run or streamed; a command that
	// ran and failed is reported through ExecResult.ExitCode.
	Exec(ctx context.Context, target Target, command string) (*ExecResult, error)
}

// Target identifies a pod (and optionally a container) in a specific kube
// context. It is the explicit cluster handle passed to every remote call.
type Target struct {
	Context   string `json:"context"`
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container,omitempty"`
}

// String returns context/namespace/pod.
func (t Target) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Context, t.Namespace, t.Pod)
}

// Validate checks that the target names a namespace and a pod.
func (t Target) Validate() error {
	var missing []string
	if t.Namespace == "" {
		missing = append(missing, "namespace")
	}
	if t.Pod == "" {
		missing = append(missing, "pod")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid target %q: missing %s", t.String(), strings.Join(missing, ", "))
	}
	return nil
}

// ContextInfo represents information about a Kubernetes context.
type ContextInfo struct {
	Name      string `json:"name"`
	Cluster   string `json:"cluster"`
	User      string `json:"user"`
	Namespace string `json:"namespace"`
	Current   bool   `json:"current"`
}

// ExecResult contains the result of a command executed in a pod.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Succeeded reports whether the command exited with status 0.
func (r *ExecResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Output returns stdout with surrounding whitespace removed.
func (r *ExecResult) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Stdout)
}

// WaitOptions configures WaitForPodReady. Zero values fall back to
// DefaultPodReadyPollInterval and DefaultPodReadyTimeout.
type WaitOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPodReadyPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPodReadyTimeout
	}
	return o
}
