package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

// Environment variables read by the migration commands.
const (
	envSourcePassword  = "KUBE_DBMIGRATE_SPW"
	envTargetPassword  = "KUBE_DBMIGRATE_TPW"
	envJournal         = "KUBE_DBMIGRATE_JOURNAL"
	envPodReadyTimeout = "KUBE_DBMIGRATE_POD_READY_TIMEOUT"
	envCleanup         = "KUBE_DBMIGRATE_CLEANUP"
)

// journalDisabled turns the journal off when passed as --journal.
const journalDisabled = "off"

// parseDurationEnv parses a duration from an environment variable value.
// Returns the parsed duration and true if successful, or zero and false if parsing fails.
// Logs a warning if the value is present but invalid.
func parseDurationEnv(value, envName string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment", "env", envName, "value", value, "error", err)
		return 0, false
	}
	return d, true
}

// EndpointConfig holds the flags describing one side of a migration.
type EndpointConfig struct {
	Context    string
	Namespace  string
	Pod        string
	Port       int
	User       string
	Password   string
	StagingDir string

	// PasswordSet records that the password was given explicitly, so an
	// empty password is not prompted for.
	PasswordSet bool
}

func (e EndpointConfig) endpoint() migration.Endpoint {
	return migration.Endpoint{
		Target:     k8s.Target{Context: e.Context, Namespace: e.Namespace, Pod: e.Pod},
		User:       e.User,
		Password:   e.Password,
		Port:       e.Port,
		StagingDir: e.StagingDir,
	}
}

// MigrateConfig holds all configuration for a migration command.
type MigrateConfig struct {
	Vendor string

	Source EndpointConfig
	Target EndpointConfig

	LocalDir        string
	PodReadyTimeout time.Duration
	Cleanup         string
	Journal         string

	Yes            bool
	NonInteractive bool
}

// Request converts the configuration into a migration request.
func (c *MigrateConfig) Request() migration.Request {
	return migration.Request{
		Source:      c.Source.endpoint(),
		Destination: c.Target.endpoint(),
	}
}

// JournalEnabled reports whether runs are recorded.
func (c *MigrateConfig) JournalEnabled() bool {
	return c.Journal != "" && c.Journal != journalDisabled
}

// loadEnv fills values from the environment for flags that were not set
// explicitly.
func (c *MigrateConfig) loadEnv(cmd *cobra.Command) {
	if !cmd.Flags().Changed("spw") {
		if pw, ok := os.LookupEnv(envSourcePassword); ok {
			c.Source.Password = pw
			c.Source.PasswordSet = true
		}
	} else {
		c.Source.PasswordSet = true
	}

	if !cmd.Flags().Changed("tpw") {
		if pw, ok := os.LookupEnv(envTargetPassword); ok {
			c.Target.Password = pw
			c.Target.PasswordSet = true
		}
	} else {
		c.Target.PasswordSet = true
	}

	if !cmd.Flags().Changed("journal") {
		if v := os.Getenv(envJournal); v != "" {
			c.Journal = v
		}
	}

	if !cmd.Flags().Changed("pod-ready-timeout") {
		if d, ok := parseDurationEnv(os.Getenv(envPodReadyTimeout), envPodReadyTimeout); ok {
			c.PodReadyTimeout = d
		}
	}

	if !cmd.Flags().Changed("cleanup") {
		if v := os.Getenv(envCleanup); v != "" {
			c.Cleanup = v
		}
	}
}

// missing lists the required flags that have no value.
func (c *MigrateConfig) missing() []string {
	var out []string
	check := func(flag, value string) {
		if value == "" {
			out = append(out, "--"+flag)
		}
	}

	check("context", c.Source.Context)
	check("snamespace", c.Source.Namespace)
	check("spod", c.Source.Pod)
	check("suser", c.Source.User)
	check("tcontext", c.Target.Context)
	check("tnamespace", c.Target.Namespace)
	check("tpod", c.Target.Pod)
	check("tuser", c.Target.User)
	return out
}

// Validate checks the configuration.
func (c *MigrateConfig) Validate() error {
	if missing := c.missing(); len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	if _, err := migration.StrategyFor(c.Vendor); err != nil {
		return err
	}

	if _, err := migration.ParseCleanupPolicy(c.Cleanup); err != nil {
		return err
	}

	if c.PodReadyTimeout <= 0 {
		return fmt.Errorf("pod ready timeout must be positive, got %s", c.PodReadyTimeout)
	}

	if c.LocalDir == "" {
		return errors.New("local directory cannot be empty")
	}
	info, err := os.Stat(c.LocalDir)
	if err != nil {
		return fmt.Errorf("local directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local directory %s is not a directory", c.LocalDir)
	}

	return c.Request().Validate()
}

// contextLister is the part of the Kubernetes client used for prompting.
type contextLister interface {
	ListContexts(ctx context.Context) ([]k8s.ContextInfo, error)
}

// complete prompts for every missing value.
func (c *MigrateConfig) complete(ctx context.Context, p *prompter, contexts contextLister) error {
	if err := completeEndpoint(ctx, p, contexts, "source", &c.Source); err != nil {
		return err
	}
	return completeEndpoint(ctx, p, contexts, "target", &c.Target)
}

func completeEndpoint(ctx context.Context, p *prompter, contexts contextLister, role string, e *EndpointConfig) error {
	var err error

	if e.Context == "" {
		list, listErr := contexts.ListContexts(ctx)
		if listErr != nil {
			return fmt.Errorf("failed to list contexts: %w", listErr)
		}
		if e.Context, err = p.ChooseContext(role+" context", list); err != nil {
			return err
		}
	}
	if e.Namespace == "" {
		if e.Namespace, err = p.String(role+" namespace", ""); err != nil {
			return err
		}
	}
	if e.Pod == "" {
		if e.Pod, err = p.String(role+" pod", ""); err != nil {
			return err
		}
	}
	if e.User == "" {
		if e.User, err = p.String(role+" database user", ""); err != nil {
			return err
		}
	}
	if !e.PasswordSet {
		if e.Password, err = p.Password(role + " database password"); err != nil {
			return err
		}
		e.PasswordSet = true
	}
	return nil
}
