package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// newContextsCmd creates the command that lists the kubeconfig contexts.
func newContextsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List the kube contexts available for migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClusterClient(kubeconfig, slog.Default())
			if err != nil {
				return err
			}

			contexts, err := client.ListContexts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list contexts: %w", err)
			}

			table := newTable(cmd.OutOrStdout(), "Current", "Name", "Cluster", "Namespace")
			for _, c := range contexts {
				current := ""
				if c.Current {
					current = "*"
				}
				table.Append([]string{current, c.Name, c.Cluster, c.Namespace})
			}
			table.Render()
			return nil
		},
	}
}
