package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kube-dbmigrate/internal/logging"
)

// Global flag values shared by all subcommands.
var (
	debugMode  bool
	logFormat  string
	kubeconfig string
)

// rootCmd represents the base command for the kube-dbmigrate application.
var rootCmd = &cobra.Command{
	Use:   "kube-dbmigrate",
	Short: "Migrate databases between Kubernetes pods",
	Long: `kube-dbmigrate copies a database from one pod to another, possibly in a
different kube context and namespace. It dumps all databases on the source
pod, downloads the dump, verifies its SHA-256 digest at every hop, uploads it
to the destination pod and restores it there.

MariaDB/MySQL and PostgreSQL are supported.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(cmd.ErrOrStderr(), logFormat, debugMode)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application. Interrupts and
// SIGTERM cancel the command context, which fails a running migration at
// its current stage.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kube-dbmigrate version %s\n" .Version}}`)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to the kubeconfig file (defaults to $KUBECONFIG or ~/.kube/config)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newExecuteCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newContextsCmd())
}
