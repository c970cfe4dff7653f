package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kube-dbmigrate/internal/journal"
	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

func testContexts() []k8s.ContextInfo {
	return []k8s.ContextInfo{
		{Name: "prod", Cluster: "prod-cluster", Current: true},
		{Name: "staging", Cluster: "staging-cluster"},
	}
}

// runMigrationCmd executes a vendor command with the given stdin and args.
func runMigrationCmd(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv(envSourcePassword, "")
	t.Setenv(envTargetPassword, "")
	t.Setenv(envJournal, "")
	t.Setenv(envCleanup, "")
	t.Setenv(envPodReadyTimeout, "")
	for _, env := range []string{envSourcePassword, envTargetPassword} {
		require.NoError(t, os.Unsetenv(env))
	}

	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func fullArgs(localDir, journalPath string) []string {
	return []string{
		"--context", "prod", "--snamespace", "prod", "--spod", "db-0", "--suser", "admin", "--spw", "secret",
		"--tcontext", "staging", "--tnamespace", "staging", "--tpod", "db-1", "--tuser", "root", "--tpw", "",
		"--local-dir", localDir,
		"--journal", journalPath,
	}
}

func TestMariaDBMigration_NonInteractive(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	localDir := t.TempDir()
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	args := append(fullArgs(localDir, journalPath), "--yes", "--non-interactive")

	stdout, _, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "", args...)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Migration plan (mysql)")
	assert.Contains(t, stdout, "admin@prod/prod/db-0:3306")
	assert.Contains(t, stdout, "root@staging/staging/db-1:3306")
	assert.Contains(t, stdout, "completed in")
	assert.NotContains(t, stdout, "secret")

	require.Len(t, cluster.restores, 1)
	assert.Contains(t, cluster.restores[0], "mysql -u root")
	assert.Contains(t, cluster.restores[0], "-P 3306")

	files, err := os.ReadDir(localDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "dump-prod-prod-db-0-"))

	j, err := journal.Open(context.Background(), journalPath, nil)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Succeeded())
	assert.Equal(t, "mysql", entries[0].Vendor)
}

func TestPostgreSQLMigration_JournalOff(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	localDir := t.TempDir()
	args := append(fullArgs(localDir, journalDisabled), "--yes", "--non-interactive", "--cleanup", "local")

	_, _, err := runMigrationCmd(t, newMigrationDumpCmd("postgresql-migration-dump", "postgresql", "PostgreSQL", migration.DefaultPostgresPort), "", args...)
	require.NoError(t, err)

	require.Len(t, cluster.restores, 1)
	assert.Contains(t, cluster.restores[0], "psql -U root -p 5432 -w")

	files, err := os.ReadDir(localDir)
	require.NoError(t, err)
	assert.Empty(t, files, "local cleanup removes the downloaded dump")
}

func TestMigration_NonInteractiveMissingFlags(t *testing.T) {
	useFakeCluster(t, newFakeCluster(testContexts()...))

	args := []string{
		"--context", "prod", "--snamespace", "prod", "--spod", "db-0", "--suser", "admin",
		"--tcontext", "staging", "--tnamespace", "staging",
		"--local-dir", t.TempDir(), "--journal", journalDisabled, "--yes", "--non-interactive",
	}

	_, _, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "", args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags: --tpod, --tuser")
}

func TestMigration_NonInteractiveRequiresYes(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	args := append(fullArgs(t.TempDir(), journalDisabled), "--non-interactive")

	_, _, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "", args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Empty(t, cluster.restores)
}

func TestMigration_PromptsForMissingValues(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	args := []string{
		"--snamespace", "prod", "--spod", "db-0", "--suser", "admin", "--spw", "secret",
		"--tcontext", "staging", "--tnamespace", "staging", "--tuser", "root",
		"--local-dir", t.TempDir(), "--journal", journalDisabled,
	}
	// source context (current), target pod, target password, confirmation
	stdin := "\ndb-1\nhunter2\nyes\n"

	stdout, stderr, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), stdin, args...)
	require.NoError(t, err)

	assert.Contains(t, stderr, "source context [prod]")
	assert.Contains(t, stderr, "target pod")
	assert.Contains(t, stderr, "target database password")
	assert.Contains(t, stdout, "admin@prod/prod/db-0:3306")

	require.Len(t, cluster.restores, 1)
	assert.Contains(t, cluster.restores[0], "-phunter2")
}

func TestMigration_DeclinedConfirmation(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	args := fullArgs(t.TempDir(), journalDisabled)

	_, _, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "n\n", args...)
	require.ErrorIs(t, err, errAborted)
	assert.Empty(t, cluster.restores)
}

func TestMigration_PasswordFromEnvironment(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	args := []string{
		"--context", "prod", "--snamespace", "prod", "--spod", "db-0", "--suser", "admin", "--spw", "secret",
		"--tcontext", "staging", "--tnamespace", "staging", "--tpod", "db-1", "--tuser", "root",
		"--local-dir", t.TempDir(), "--journal", journalDisabled, "--yes", "--non-interactive",
	}

	cmd := newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv(envTargetPassword, "from-env")

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	require.Len(t, cluster.restores, 1)
	assert.Contains(t, cluster.restores[0], "-pfrom-env")
}

func TestMigration_StageFailureIsReported(t *testing.T) {
	cluster := newFakeCluster(testContexts()...)
	useFakeCluster(t, cluster)

	args := fullArgs(t.TempDir(), journalDisabled)
	args = append(args, "--yes", "--non-interactive")
	for i, a := range args {
		if a == "--tcontext" {
			args[i+1] = "missing"
		}
	}

	_, _, err := runMigrationCmd(t, newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "", args...)
	require.Error(t, err)
	assert.ErrorIs(t, err, migration.ErrPrecondition)
	assert.Contains(t, err.Error(), "SpaceChecked")
	assert.Empty(t, cluster.restores)
}

func TestMigrationDumpCmdDefaults(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		port string
	}{
		{newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort), "3306"},
		{newMigrationDumpCmd("postgresql-migration-dump", "postgresql", "PostgreSQL", migration.DefaultPostgresPort), "5432"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			f := tt.cmd.Flags()
			assert.Equal(t, tt.port, f.Lookup("sport").DefValue)
			assert.Equal(t, tt.port, f.Lookup("tport").DefValue)
			assert.Equal(t, "/tmp", f.Lookup("slocation").DefValue)
			assert.Equal(t, "/tmp", f.Lookup("tlocation").DefValue)
			assert.Equal(t, "none", f.Lookup("cleanup").DefValue)
			assert.Equal(t, k8s.DefaultPodReadyTimeout.String(), f.Lookup("pod-ready-timeout").DefValue)
			assert.Contains(t, f.Lookup("pod-ready-timeout").Usage, "together")
		})
	}
}
