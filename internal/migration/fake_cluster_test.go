package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// fakePod is the in-memory state of one pod.
type fakePod struct {
	ready     bool
	dirs      map[string]bool
	utilities map[string]bool
	freeKiB   int64
	files     map[string][]byte

	// vendor command behaviour
	dumpContent []byte
	dumpExit    int
	restoreExit int
	// readyAfter delays WaitForPodReady; a wait shorter than it fails.
	readyAfter time.Duration
}

func newFakePod() *fakePod {
	return &fakePod{
		ready:     true,
		dirs:      map[string]bool{"/tmp": true},
		utilities: map[string]bool{},
		freeKiB:   1 << 30,
		files:     map[string][]byte{},
	}
}

// fakeCluster implements Cluster over in-memory pods and records every call.
type fakeCluster struct {
	mu       sync.Mutex
	pods     map[string]*fakePod
	contexts map[string]bool

	commands  []string
	downloads []string
	uploads   []string
	restores  []string

	// corruptUpload flips the first byte of uploaded files.
	corruptUpload bool
	// corruptDownload flips the first byte of downloaded files.
	corruptDownload bool
	// execErr makes every Exec whose command contains the key fail in transport.
	execErr map[string]error
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		pods:     map[string]*fakePod{},
		contexts: map[string]bool{},
		execErr:  map[string]error{},
	}
}

func key(t k8s.Target) string {
	return t.Context + "/" + t.Namespace + "/" + t.Pod
}

func (c *fakeCluster) addPod(t k8s.Target) *fakePod {
	p := newFakePod()
	c.pods[key(t)] = p
	c.contexts[t.Context] = true
	return p
}

func (c *fakeCluster) pod(t k8s.Target) (*fakePod, error) {
	p, ok := c.pods[key(t)]
	if !ok {
		return nil, fmt.Errorf("pod %s: %w: not found", t, k8s.ErrStreamFailed)
	}
	return p, nil
}

func (c *fakeCluster) ResolveContext(_ context.Context, name string) (*k8s.ContextInfo, error) {
	if !c.contexts[name] {
		return nil, fmt.Errorf("context %q: %w", name, k8s.ErrContextNotFound)
	}
	return &k8s.ContextInfo{Name: name}, nil
}

func (c *fakeCluster) WaitForPodReady(ctx context.Context, t k8s.Target, opts k8s.WaitOptions) error {
	c.mu.Lock()
	p, ok := c.pods[key(t)]
	c.mu.Unlock()
	if !ok || !p.ready {
		return &k8s.PodNotReadyError{Target: t, Timeout: opts.Timeout, LastPhase: "Pending", Err: context.DeadlineExceeded}
	}
	if p.readyAfter <= 0 {
		return nil
	}
	if opts.Timeout > 0 && opts.Timeout < p.readyAfter {
		return &k8s.PodNotReadyError{Target: t, Timeout: opts.Timeout, LastPhase: "Pending", Err: context.DeadlineExceeded}
	}

	timer := time.NewTimer(p.readyAfter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &k8s.PodNotReadyError{Target: t, Timeout: opts.Timeout, LastPhase: "Pending", Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

var (
	utilityRe  = regexp.MustCompile(`^if command -v (\S+) `)
	dirRe      = regexp.MustCompile(`^if \[ -d (\S+) \]`)
	spaceRe    = regexp.MustCompile(`-gt (\d+) \]`)
	redirectRe = regexp.MustCompile(`> (\S+)$`)
)

func (c *fakeCluster) Exec(_ context.Context, t k8s.Target, command string) (*k8s.ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands = append(c.commands, command)
	for k, err := range c.execErr {
		if strings.Contains(command, k) {
			return nil, fmt.Errorf("exec: %w: %w", k8s.ErrStreamFailed, err)
		}
	}

	p, err := c.pod(t)
	if err != nil {
		return nil, err
	}

	boolResult := func(b bool) *k8s.ExecResult {
		return &k8s.ExecResult{Stdout: strconv.FormatBool(b) + "\n"}
	}

	switch {
	case utilityRe.MatchString(command):
		return boolResult(p.utilities[utilityRe.FindStringSubmatch(command)[1]]), nil

	case dirRe.MatchString(command):
		return boolResult(p.dirs[unquote(dirRe.FindStringSubmatch(command)[1])]), nil

	case strings.Contains(command, "df -Pk"):
		required, _ := strconv.ParseInt(spaceRe.FindStringSubmatch(command)[1], 10, 64)
		return boolResult(p.freeKiB > required), nil

	case strings.HasPrefix(command, "sha256sum "):
		path := unquote(strings.TrimPrefix(command, "sha256sum "))
		data, ok := p.files[path]
		if !ok {
			return &k8s.ExecResult{ExitCode: 1, Stderr: "sha256sum: " + path + ": No such file or directory"}, nil
		}
		sum := sha256.Sum256(data)
		return &k8s.ExecResult{Stdout: hex.EncodeToString(sum[:]) + "  " + path + "\n"}, nil

	case strings.Contains(command, "mysqldump") || strings.Contains(command, "pg_dumpall"):
		if p.dumpExit != 0 {
			return &k8s.ExecResult{ExitCode: p.dumpExit, Stderr: "dump failed"}, nil
		}
		path := unquote(redirectRe.FindStringSubmatch(command)[1])
		p.files[path] = append([]byte(nil), p.dumpContent...)
		return &k8s.ExecResult{}, nil

	case strings.Contains(command, "mysql ") || strings.Contains(command, "psql "):
		c.restores = append(c.restores, command)
		if p.restoreExit != 0 {
			return &k8s.ExecResult{ExitCode: p.restoreExit, Stderr: "ERROR 1045 (28000): Access denied"}, nil
		}
		return &k8s.ExecResult{}, nil

	case strings.HasPrefix(command, "rm -f "):
		delete(p.files, unquote(strings.TrimPrefix(command, "rm -f ")))
		return &k8s.ExecResult{}, nil
	}

	return &k8s.ExecResult{ExitCode: 127, Stderr: "sh: command not found"}, nil
}

func (c *fakeCluster) Download(_ context.Context, t k8s.Target, remotePath, localPath string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.downloads = append(c.downloads, remotePath)
	p, err := c.pod(t)
	if err != nil {
		return 0, err
	}
	data, ok := p.files[remotePath]
	if !ok {
		return 0, fmt.Errorf("cat: %s: No such file or directory", remotePath)
	}
	if c.corruptDownload && len(data) > 0 {
		data = append([]byte(nil), data...)
		data[0] ^= 0xff
	}
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (c *fakeCluster) Upload(_ context.Context, t k8s.Target, localPath, remotePath string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.uploads = append(c.uploads, remotePath)
	p, err := c.pod(t)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	if c.corruptUpload && len(data) > 0 {
		data = append([]byte(nil), data...)
		data[0] ^= 0xff
	}
	p.files[remotePath] = data
	return int64(len(data)), nil
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}

// fixedClock returns a clock starting at t that advances by step on each call.
func fixedClock(t time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}
