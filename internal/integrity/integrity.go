// Package integrity computes SHA-256 digests of dump files on the local
// filesystem and inside pods, so every hop of a migration can be verified.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// HashUtility is the remote command used to digest files.
const HashUtility = "sha256sum"

var (
	// ErrEmptyHash is returned when a digest came back empty. An empty
	// digest can never be valid.
	ErrEmptyHash = errors.New("empty hash")

	// ErrMalformedHash is returned when remote output is not a SHA-256 hex digest.
	ErrMalformedHash = errors.New("malformed hash")

	// ErrHashCommand is returned when the remote hashing utility exits non-zero.
	ErrHashCommand = errors.New("hash command failed")
)

// LocalHash returns the hex SHA-256 digest of the file at path.
func LocalHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if sum == "" {
		return "", fmt.Errorf("local hash of %s: %w", path, ErrEmptyHash)
	}
	return sum, nil
}

// RemoteHash returns the hex SHA-256 digest of path inside the target pod.
// Transport failures are returned unchanged from the executor so callers can
// tell them apart from a hash that could not be produced.
func RemoteHash(ctx context.Context, exec k8s.CommandExecutor, target k8s.Target, path string) (string, error) {
	result, err := exec.Exec(ctx, target, HashUtility+" "+shellescape.Quote(path))
	if err != nil {
		return "", fmt.Errorf("remote hash of %s on %s: %w", path, target, err)
	}
	if !result.Succeeded() {
		return "", fmt.Errorf("remote hash of %s on %s: %w: exit code %d: %s",
			path, target, ErrHashCommand, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return parseDigest(result.Output(), path, target)
}

// parseDigest extracts the digest from "<hex>  <path>" output.
func parseDigest(output, path string, target k8s.Target) (string, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", fmt.Errorf("remote hash of %s on %s: %w", path, target, ErrEmptyHash)
	}

	digest := strings.ToLower(fields[0])
	if len(digest) != hex.EncodedLen(sha256.Size) {
		return "", fmt.Errorf("remote hash of %s on %s: %w: %q", path, target, ErrMalformedHash, fields[0])
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("remote hash of %s on %s: %w: %q", path, target, ErrMalformedHash, fields[0])
	}
	return digest, nil
}

// Match reports whether every digest is non-empty and all are equal.
func Match(hashes ...string) bool {
	if len(hashes) == 0 {
		return false
	}
	for _, h := range hashes {
		if h == "" || h != hashes[0] {
			return false
		}
	}
	return true
}
