package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kube-dbmigrate/internal/instrumentation"
	"github.com/giantswarm/kube-dbmigrate/internal/journal"
	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
	"github.com/giantswarm/kube-dbmigrate/internal/logging"
	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

// errAborted is returned when the operator declines the confirmation.
var errAborted = errors.New("migration aborted")

// clusterClient is what the commands need from the Kubernetes client.
type clusterClient interface {
	migration.Cluster
	contextLister
}

// newClusterClient builds the Kubernetes client from the kubeconfig.
var newClusterClient = func(kubeconfigPath string, logger *slog.Logger) (clusterClient, error) {
	client, err := k8s.NewClient(&k8s.ClientConfig{
		KubeconfigPath: kubeconfigPath,
		DebugMode:      debugMode,
		Logger:         logging.NewSlogAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return client, nil
}

// newExecuteCmd groups the migration commands.
func newExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run a database migration between pods",
	}

	cmd.AddCommand(newMigrationDumpCmd("mariadb-migration-dump", "mariadb", "MariaDB", migration.DefaultMySQLPort))
	cmd.AddCommand(newMigrationDumpCmd("postgresql-migration-dump", "postgresql", "PostgreSQL", migration.DefaultPostgresPort))

	return cmd
}

// newMigrationDumpCmd creates a migration command for one vendor family.
func newMigrationDumpCmd(use, vendor, vendorTitle string, defaultPort int) *cobra.Command {
	cfg := &MigrateConfig{Vendor: vendor}

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Migrate a %s database from one pod to another", vendorTitle),
		Long: fmt.Sprintf(`Dumps all %[1]s databases on the source pod, downloads the dump to the
local directory and uploads it to the target pod, where it is restored.

The dump is compressed with gzip when the source pod provides it. Its SHA-256
digest is compared on the source pod, locally and on the target pod before
anything is restored. Both staging directories must already exist.

Missing values are prompted for unless --non-interactive is given. Passwords
may also be passed through %[2]s and %[3]s.`, vendorTitle, envSourcePassword, envTargetPassword),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.loadEnv(cmd)
			return runMigrate(cmd, cfg)
		},
	}

	defaultJournal, err := journal.DefaultPath()
	if err != nil {
		defaultJournal = journalDisabled
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Source.Context, "context", "", "Source kube context")
	f.StringVar(&cfg.Source.Namespace, "snamespace", "", "Source namespace")
	f.StringVar(&cfg.Source.Pod, "spod", "", "Source pod")
	f.IntVar(&cfg.Source.Port, "sport", defaultPort, "Source database port")
	f.StringVar(&cfg.Source.User, "suser", "", "Source database user")
	f.StringVar(&cfg.Source.Password, "spw", "", fmt.Sprintf("Source database password (prompted if unset, or %s)", envSourcePassword))
	f.StringVar(&cfg.Source.StagingDir, "slocation", migration.DefaultStagingDir, "Dump directory on the source pod")

	f.StringVar(&cfg.Target.Context, "tcontext", "", "Target kube context")
	f.StringVar(&cfg.Target.Namespace, "tnamespace", "", "Target namespace")
	f.StringVar(&cfg.Target.Pod, "tpod", "", "Target pod")
	f.IntVar(&cfg.Target.Port, "tport", defaultPort, "Target database port")
	f.StringVar(&cfg.Target.User, "tuser", "", "Target database user")
	f.StringVar(&cfg.Target.Password, "tpw", "", fmt.Sprintf("Target database password (prompted if unset, or %s)", envTargetPassword))
	f.StringVar(&cfg.Target.StagingDir, "tlocation", migration.DefaultStagingDir, "Dump directory on the target pod")

	f.StringVar(&cfg.LocalDir, "local-dir", ".", "Local directory for the downloaded dump")
	f.DurationVar(&cfg.PodReadyTimeout, "pod-ready-timeout", k8s.DefaultPodReadyTimeout, "How long the source and destination pods together may take to become ready")
	f.StringVar(&cfg.Cleanup, "cleanup", string(migration.CleanupNone), "Staging copies to remove after success: none, local, remote or all")
	f.StringVar(&cfg.Journal, "journal", defaultJournal, fmt.Sprintf("Run journal database, %q to disable (or %s)", journalDisabled, envJournal))
	f.BoolVarP(&cfg.Yes, "yes", "y", false, "Do not ask for confirmation")
	f.BoolVar(&cfg.NonInteractive, "non-interactive", false, "Never prompt; fail if a required value is missing")

	return cmd
}

func runMigrate(cmd *cobra.Command, cfg *MigrateConfig) error {
	ctx := cmd.Context()
	logger := slog.Default()
	out := cmd.OutOrStdout()

	client, err := newClusterClient(kubeconfig, logger)
	if err != nil {
		return err
	}

	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	if !cfg.NonInteractive {
		if err := cfg.complete(ctx, p, client); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	strategy, err := migration.StrategyFor(cfg.Vendor)
	if err != nil {
		return err
	}
	cleanup, err := migration.ParseCleanupPolicy(cfg.Cleanup)
	if err != nil {
		return err
	}

	printPlan(out, cfg, strategy)

	if !cfg.Yes {
		if cfg.NonInteractive {
			return errors.New("confirmation required: pass --yes together with --non-interactive")
		}
		ok, err := p.Confirm("Start migration? Existing data on the target will be overwritten")
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = rootCmd.Version
	provider, err := instrumentation.NewProvider(ctx, instrumentationConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	opts := []migration.Option{
		migration.WithLogger(logger),
		migration.WithMetrics(provider.Metrics()),
		migration.WithLocalDir(cfg.LocalDir),
		migration.WithPodReadyTimeout(cfg.PodReadyTimeout),
		migration.WithCleanup(cleanup),
	}

	if cfg.JournalEnabled() {
		j, err := journal.Open(ctx, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, migration.WithRecorder(j))
	}

	m, err := migration.New(client, strategy, opts...)
	if err != nil {
		return err
	}

	result, err := m.Run(ctx, cfg.Request())
	if err != nil {
		return fmt.Errorf("run %s: %w", result.RunID, err)
	}

	printResult(out, result)
	return nil
}

func printPlan(w io.Writer, cfg *MigrateConfig, strategy migration.Strategy) {
	req := cfg.Request()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Migration plan (%s)\n", strategy.Name())
	_, _ = fmt.Fprintf(tw, "  Source:\t%s\tstaging %s\n", req.Source, req.Source.StagingDir)
	_, _ = fmt.Fprintf(tw, "  Target:\t%s\tstaging %s\n", req.Destination, req.Destination.StagingDir)
	_, _ = fmt.Fprintf(tw, "  Local directory:\t%s\t\n", cfg.LocalDir)
	_, _ = fmt.Fprintf(tw, "  Cleanup:\t%s\t\n", cfg.Cleanup)
	_ = tw.Flush()
}

func printResult(w io.Writer, result *migration.Result) {
	a := result.Artifact

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Migration %s completed in %s\n", result.RunID, result.Duration.Round(1e6))
	_, _ = fmt.Fprintf(tw, "  Local dump:\t%s\n", a.LocalPath)
	_, _ = fmt.Fprintf(tw, "  Size:\t%s\n", a.HumanSize())
	_, _ = fmt.Fprintf(tw, "  Compressed:\t%t\n", a.Compressed)
	_, _ = fmt.Fprintf(tw, "  SHA-256:\t%s\n", a.LocalHash)
	_ = tw.Flush()
}
