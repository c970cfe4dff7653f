package migration

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

const (
	// DefaultStagingDir is used on both pods when no staging directory is given.
	DefaultStagingDir = "/tmp"

	DefaultMySQLPort    = 3306
	DefaultPostgresPort = 5432
)

// Endpoint is one side of a migration: the pod and the database credentials
// used inside it.
type Endpoint struct {
	Target     k8s.Target
	User       string
	Password   string
	Port       int
	StagingDir string
}

// String renders the endpoint without its password.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s:%d", e.User, e.Target, e.Port)
}

// LogValue keeps the password out of structured logs.
func (e Endpoint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("context", e.Target.Context),
		slog.String("namespace", e.Target.Namespace),
		slog.String("pod", e.Target.Pod),
		slog.String("user", e.User),
		slog.Int("port", e.Port),
		slog.String("staging_dir", e.StagingDir),
	)
}

func (e Endpoint) validate(role string) error {
	var problems []string
	if e.Target.Context == "" {
		problems = append(problems, "context is required")
	}
	if e.Target.Namespace == "" {
		problems = append(problems, "namespace is required")
	}
	if e.Target.Pod == "" {
		problems = append(problems, "pod is required")
	}
	if e.User == "" {
		problems = append(problems, "database user is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", e.Port))
	}
	if !path.IsAbs(e.StagingDir) {
		problems = append(problems, fmt.Sprintf("staging directory %q must be an absolute path", e.StagingDir))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %s", role, strings.Join(problems, "; "))
	}
	return nil
}

// Request is the input of one migration run. It is not modified by Run.
type Request struct {
	Source      Endpoint
	Destination Endpoint
}

// Validate checks both endpoints.
func (r Request) Validate() error {
	var problems []string
	if err := r.Source.validate("source"); err != nil {
		problems = append(problems, err.Error())
	}
	if err := r.Destination.validate("destination"); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid migration request: %s", strings.Join(problems, ", "))
	}
	return nil
}
