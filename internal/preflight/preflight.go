// Package preflight implements the boolean probes a migration runs against a
// pod before touching it: utility availability, directory existence and free
// space.
//
// Each probe runs a conditional shell test that prints the literal "true" or
// "false". Anything else, including a non-zero exit or a broken exec stream,
// is reported as ErrIndeterminate rather than false.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// SpaceMountPoint is the mount whose free space HasEnoughSpace measures.
const SpaceMountPoint = "/tmp"

const (
	bytesPerKibibyte = 1024
	bytesPerMebibyte = 1024 * 1024

	// exitUnparsable is returned by the space probe when df output has no
	// numeric "available" column.
	exitUnparsable = 3
)

// ErrIndeterminate means a probe could not decide between true and false.
var ErrIndeterminate = errors.New("preflight check indeterminate")

// UtilityAvailable reports whether name resolves to a command in the pod.
func UtilityAvailable(ctx context.Context, exec k8s.CommandExecutor, target k8s.Target, name string) (bool, error) {
	cmd := fmt.Sprintf("if command -v %s >/dev/null 2>&1; then echo true; else echo false; fi",
		shellescape.Quote(name))
	return probe(ctx, exec, target, "utility "+name, cmd)
}

// DirectoryExists reports whether path is a directory in the pod.
func DirectoryExists(ctx context.Context, exec k8s.CommandExecutor, target k8s.Target, path string) (bool, error) {
	cmd := fmt.Sprintf("if [ -d %s ]; then echo true; else echo false; fi", shellescape.Quote(path))
	return probe(ctx, exec, target, "directory "+path, cmd)
}

// HasEnoughSpace reports whether SpaceMountPoint in the pod has strictly more
// than requiredMegabytes free.
func HasEnoughSpace(ctx context.Context, exec k8s.CommandExecutor, target k8s.Target, requiredMegabytes int64) (bool, error) {
	return probe(ctx, exec, target, fmt.Sprintf("space %d MB", requiredMegabytes), SpaceCommand(requiredMegabytes))
}

// SpaceCommand builds the shell test used by HasEnoughSpace. df -P keeps the
// output on one line per filesystem; -k reports KiB on both GNU and busybox.
func SpaceCommand(requiredMegabytes int64) string {
	requiredKiB := requiredMegabytes * (bytesPerMebibyte / bytesPerKibibyte)
	return fmt.Sprintf(
		`avail=$(df -Pk %s | awk 'END{print $4}'); case "$avail" in ''|*[!0-9]*) exit %d;; esac; `+
			`if [ "$avail" -gt %d ]; then echo true; else echo false; fi`,
		shellescape.Quote(SpaceMountPoint), exitUnparsable, requiredKiB)
}

// RequiredMegabytes converts a file size to whole MiB, rounding up.
func RequiredMegabytes(sizeBytes int64) int64 {
	if sizeBytes <= 0 {
		return 0
	}
	return (sizeBytes + bytesPerMebibyte - 1) / bytesPerMebibyte
}

func probe(ctx context.Context, exec k8s.CommandExecutor, target k8s.Target, what, cmd string) (bool, error) {
	result, err := exec.Exec(ctx, target, cmd)
	if err != nil {
		return false, fmt.Errorf("%w: %s on %s: %w", ErrIndeterminate, what, target, err)
	}
	if !result.Succeeded() {
		return false, fmt.Errorf("%w: %s on %s: exit code %d: %s",
			ErrIndeterminate, what, target, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	switch out := result.Output(); out {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s on %s: unexpected output %q", ErrIndeterminate, what, target, out)
	}
}
