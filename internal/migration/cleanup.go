package migration

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

// CleanupPolicy selects which staging copies are removed after a successful
// run. Failed runs never clean up so the artifacts stay available for
// inspection.
type CleanupPolicy string

const (
	CleanupNone   CleanupPolicy = "none"
	CleanupLocal  CleanupPolicy = "local"
	CleanupRemote CleanupPolicy = "remote"
	CleanupAll    CleanupPolicy = "all"
)

// ParseCleanupPolicy parses a policy name. The empty string means CleanupNone.
func ParseCleanupPolicy(s string) (CleanupPolicy, error) {
	switch p := CleanupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CleanupNone, nil
	case CleanupNone, CleanupLocal, CleanupRemote, CleanupAll:
		return p, nil
	default:
		return "", fmt.Errorf("invalid cleanup policy %q (valid: none, local, remote, all)", s)
	}
}

func (p CleanupPolicy) local() bool  { return p == CleanupLocal || p == CleanupAll }
func (p CleanupPolicy) remote() bool { return p == CleanupRemote || p == CleanupAll }

// cleanup removes staging copies according to the policy. Errors are logged
// as warnings only.
func (r *run) cleanup(ctx context.Context) {
	policy := r.m.opts.cleanup
	a := r.artifact

	if policy.local() && a.LocalPath != "" {
		if err := os.Remove(a.LocalPath); err != nil {
			r.logger.Warn("failed to remove local dump", logging.Path(a.LocalPath), logging.Err(err))
		} else {
			r.logger.Info("removed local dump", logging.Path(a.LocalPath))
		}
	}

	if policy.remote() {
		r.removeRemote(ctx, r.req.Source.Target, a.RemotePath)
		r.removeRemote(ctx, r.req.Destination.Target, a.DestinationPath)
	}
}

func (r *run) removeRemote(ctx context.Context, target k8s.Target, remotePath string) {
	if remotePath == "" {
		return
	}

	attrs := []any{logging.Pod(target.Pod), logging.Namespace(target.Namespace), logging.Path(remotePath)}
	res, err := r.m.cluster.Exec(ctx, target, "rm -f "+shellescape.Quote(remotePath))
	switch {
	case err != nil:
		r.logger.Warn("failed to remove remote dump", append(attrs, logging.Err(err))...)
	case !res.Succeeded():
		r.logger.Warn("failed to remove remote dump", append(attrs, "exit_code", res.ExitCode, "stderr", res.Stderr)...)
	default:
		r.logger.Info("removed remote dump", attrs...)
	}
}
