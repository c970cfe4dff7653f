package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// fakeCluster answers every probe positively and keeps pod files in memory.
type fakeCluster struct {
	mu       sync.Mutex
	contexts []k8s.ContextInfo
	files    map[string][]byte
	restores []string
	listErr  error
}

func newFakeCluster(contexts ...k8s.ContextInfo) *fakeCluster {
	return &fakeCluster{contexts: contexts, files: map[string][]byte{}}
}

// useFakeCluster swaps newClusterClient for the duration of the test.
func useFakeCluster(t *testing.T, c *fakeCluster) {
	t.Helper()
	orig := newClusterClient
	newClusterClient = func(string, *slog.Logger) (clusterClient, error) { return c, nil }
	t.Cleanup(func() { newClusterClient = orig })
}

func fileKey(t k8s.Target, path string) string {
	return t.String() + ":" + strings.Trim(path, "'")
}

func (c *fakeCluster) ListContexts(context.Context) ([]k8s.ContextInfo, error) {
	return c.contexts, c.listErr
}

func (c *fakeCluster) ResolveContext(_ context.Context, name string) (*k8s.ContextInfo, error) {
	for _, ci := range c.contexts {
		if ci.Name == name {
			return &ci, nil
		}
	}
	return nil, fmt.Errorf("context %q: %w", name, k8s.ErrContextNotFound)
}

func (c *fakeCluster) WaitForPodReady(context.Context, k8s.Target, k8s.WaitOptions) error {
	return nil
}

var dumpTargetRe = regexp.MustCompile(`> (\S+)$`)

func (c *fakeCluster) Exec(_ context.Context, t k8s.Target, command string) (*k8s.ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(command, "if "), strings.Contains(command, "df -Pk"):
		return &k8s.ExecResult{Stdout: "true\n"}, nil

	case strings.HasPrefix(command, "sha256sum "):
		path := strings.TrimPrefix(command, "sha256sum ")
		sum := sha256.Sum256(c.files[fileKey(t, path)])
		return &k8s.ExecResult{Stdout: hex.EncodeToString(sum[:]) + "  " + path + "\n"}, nil

	case strings.Contains(command, "mysqldump"), strings.Contains(command, "pg_dumpall"):
		path := dumpTargetRe.FindStringSubmatch(command)[1]
		c.files[fileKey(t, path)] = []byte("-- dump\n")
		return &k8s.ExecResult{}, nil

	case strings.Contains(command, "mysql "), strings.Contains(command, "psql "):
		c.restores = append(c.restores, command)
	}

	return &k8s.ExecResult{}, nil
}

func (c *fakeCluster) Download(_ context.Context, t k8s.Target, remotePath, localPath string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.files[fileKey(t, remotePath)]
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (c *fakeCluster) Upload(_ context.Context, t k8s.Target, localPath, remotePath string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	c.files[fileKey(t, remotePath)] = data
	return int64(len(data)), nil
}
