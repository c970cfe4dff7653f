package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

func validConfig(t *testing.T) *MigrateConfig {
	t.Helper()
	return &MigrateConfig{
		Vendor: "mariadb",
		Source: EndpointConfig{
			Context: "prod", Namespace: "prod", Pod: "db-0",
			Port: 3306, User: "admin", Password: "secret", StagingDir: "/tmp",
		},
		Target: EndpointConfig{
			Context: "staging", Namespace: "staging", Pod: "db-1",
			Port: 3306, User: "root", StagingDir: "/backup",
		},
		LocalDir:        t.TempDir(),
		PodReadyTimeout: time.Minute,
		Cleanup:         "none",
		Journal:         journalDisabled,
	}
}

func TestMigrateConfigValidate(t *testing.T) {
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	tests := []struct {
		name        string
		modify      func(*MigrateConfig)
		errContains string
	}{
		{name: "valid", modify: func(*MigrateConfig) {}},
		{
			name:        "missing flags",
			modify:      func(c *MigrateConfig) { c.Source.Pod = ""; c.Target.User = "" },
			errContains: "missing required flags: --spod, --tuser",
		},
		{
			name:        "unknown vendor",
			modify:      func(c *MigrateConfig) { c.Vendor = "oracle" },
			errContains: "unknown database vendor",
		},
		{
			name:        "invalid cleanup",
			modify:      func(c *MigrateConfig) { c.Cleanup = "everything" },
			errContains: "invalid cleanup policy",
		},
		{
			name:        "zero timeout",
			modify:      func(c *MigrateConfig) { c.PodReadyTimeout = 0 },
			errContains: "pod ready timeout must be positive",
		},
		{
			name:        "missing local dir",
			modify:      func(c *MigrateConfig) { c.LocalDir = filepath.Join(c.LocalDir, "nope") },
			errContains: "local directory",
		},
		{
			name:        "local dir is a file",
			modify:      func(c *MigrateConfig) { c.LocalDir = notADir },
			errContains: "is not a directory",
		},
		{
			name:        "relative staging dir",
			modify:      func(c *MigrateConfig) { c.Target.StagingDir = "backup" },
			errContains: "must be an absolute path",
		},
		{
			name:        "port out of range",
			modify:      func(c *MigrateConfig) { c.Source.Port = 70000 },
			errContains: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(t)
			tt.modify(c)

			err := c.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestMigrateConfigRequest(t *testing.T) {
	c := validConfig(t)
	req := c.Request()

	assert.Equal(t, "prod", req.Source.Target.Context)
	assert.Equal(t, "db-0", req.Source.Target.Pod)
	assert.Equal(t, "secret", req.Source.Password)
	assert.Equal(t, "staging", req.Destination.Target.Namespace)
	assert.Equal(t, "/backup", req.Destination.StagingDir)
	assert.NoError(t, req.Validate())
}

func TestMigrateConfigJournalEnabled(t *testing.T) {
	c := &MigrateConfig{}
	assert.False(t, c.JournalEnabled())

	c.Journal = journalDisabled
	assert.False(t, c.JournalEnabled())

	c.Journal = "/var/lib/kube-dbmigrate/journal.db"
	assert.True(t, c.JournalEnabled())
}

func TestMigrateConfigLoadEnv(t *testing.T) {
	t.Setenv(envSourcePassword, "src-pw")
	t.Setenv(envTargetPassword, "")
	t.Setenv(envJournal, "off")
	t.Setenv(envPodReadyTimeout, "90s")
	t.Setenv(envCleanup, "all")

	cmd := newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort)
	require.NoError(t, cmd.Flags().Parse([]string{"--tpw", "flag-pw"}))

	c := &MigrateConfig{Target: EndpointConfig{Password: "flag-pw"}, PodReadyTimeout: time.Minute}
	c.loadEnv(cmd)

	assert.Equal(t, "src-pw", c.Source.Password)
	assert.True(t, c.Source.PasswordSet)
	assert.Equal(t, "flag-pw", c.Target.Password, "explicit flags win over the environment")
	assert.True(t, c.Target.PasswordSet)
	assert.Equal(t, "off", c.Journal)
	assert.Equal(t, 90*time.Second, c.PodReadyTimeout)
	assert.Equal(t, "all", c.Cleanup)
}

func TestMigrateConfigLoadEnvInvalidTimeout(t *testing.T) {
	t.Setenv(envPodReadyTimeout, "soon")

	cmd := newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort)
	c := &MigrateConfig{PodReadyTimeout: time.Minute}
	c.loadEnv(cmd)

	assert.Equal(t, time.Minute, c.PodReadyTimeout)
}

func TestParseDurationEnv(t *testing.T) {
	d, ok := parseDurationEnv("2m", "X")
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	_, ok = parseDurationEnv("", "X")
	assert.False(t, ok)

	_, ok = parseDurationEnv("later", "X")
	assert.False(t, ok)
}

type stubContexts struct {
	err error
}

func (s stubContexts) ListContexts(context.Context) ([]k8s.ContextInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return testContexts(), nil
}

func TestMigrateConfigComplete(t *testing.T) {
	c := &MigrateConfig{
		Source: EndpointConfig{Namespace: "prod", User: "admin", Password: "secret", PasswordSet: true},
		Target: EndpointConfig{Context: "staging", Namespace: "staging", Pod: "db-1"},
	}
	p, _ := newTestPrompter("2\ndb-0\nroot\n\n")

	require.NoError(t, c.complete(context.Background(), p, stubContexts{}))

	assert.Equal(t, "staging", c.Source.Context)
	assert.Equal(t, "db-0", c.Source.Pod)
	assert.Equal(t, "secret", c.Source.Password)
	assert.Equal(t, "root", c.Target.User)
	assert.Empty(t, c.Target.Password)
	assert.True(t, c.Target.PasswordSet)
}

func TestMigrateConfigCompleteListError(t *testing.T) {
	c := &MigrateConfig{}
	p, _ := newTestPrompter("")

	err := c.complete(context.Background(), p, stubContexts{err: errors.New("no kubeconfig")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list contexts")
}
