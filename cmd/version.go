package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kube-dbmigrate/internal/migration"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kube-dbmigrate",
		Long: `Prints the kube-dbmigrate version and the database vendors
its migration commands accept.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "kube-dbmigrate version %s\n", rootCmd.Version)
			_, _ = fmt.Fprintf(out, "supported databases: %s\n", strings.Join(migration.Vendors(), ", "))
		},
	}
}
