package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/giantswarm/kube-dbmigrate/internal/journal"
)

const defaultHistoryLimit = 20

// newHistoryCmd creates the command that shows recorded runs.
func newHistoryCmd() *cobra.Command {
	var (
		journalPath string
		limit       int
		runID       string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded migration runs",
		Long: `Lists the migration runs recorded in the journal, newest first.
With --run, shows the state transitions and dump details of a single run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if journalPath == "" || journalPath == journalDisabled {
				return fmt.Errorf("journal is disabled")
			}

			ctx := cmd.Context()
			j, err := journal.Open(ctx, journalPath, slog.Default())
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				entry, err := j.Get(ctx, runID)
				if err != nil {
					return err
				}
				states, err := j.States(ctx, runID)
				if err != nil {
					return err
				}
				printRun(out, entry, states)
				return nil
			}

			entries, err := j.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			printHistory(out, entries)
			return nil
		},
	}

	defaultJournal, err := journal.DefaultPath()
	if err != nil {
		defaultJournal = ""
	}

	cmd.Flags().StringVar(&journalPath, "journal", defaultJournal, "Run journal database")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show details of a single run")

	return cmd
}

// Run statuses shown by history.
const (
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
	statusIncomplete = "incomplete"
)

func runStatus(e journal.Entry) string {
	status := statusFailed
	switch {
	case e.Succeeded():
		status = statusSucceeded
	case e.FinishedAt == nil:
		status = statusIncomplete
	}
	return cases.Title(language.English).String(status)
}

func printHistory(w io.Writer, entries []journal.Entry) {
	table := newTable(w, "Run", "Vendor", "Source", "Destination", "Started", "Status", "Failed At")
	for _, e := range entries {
		table.Append([]string{
			e.ID,
			e.Vendor,
			e.Source.String(),
			e.Destination.String(),
			humanize.Time(e.StartedAt),
			runStatus(e),
			string(e.FailedAt),
		})
	}
	table.Render()
}

func printRun(w io.Writer, e *journal.Entry, states []journal.StateChange) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Run:\t%s\n", e.ID)
	_, _ = fmt.Fprintf(tw, "Vendor:\t%s\n", e.Vendor)
	_, _ = fmt.Fprintf(tw, "Source:\t%s\n", e.Source)
	_, _ = fmt.Fprintf(tw, "Destination:\t%s\n", e.Destination)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", runStatus(*e))
	if e.FailedAt != "" {
		_, _ = fmt.Fprintf(tw, "Failed at:\t%s\n", e.FailedAt)
	}
	if e.Error != "" {
		_, _ = fmt.Fprintf(tw, "Error:\t%s\n", e.Error)
	}
	if e.Artifact.LocalPath != "" {
		_, _ = fmt.Fprintf(tw, "Local dump:\t%s\n", e.Artifact.LocalPath)
		_, _ = fmt.Fprintf(tw, "Size:\t%s\n", e.Artifact.HumanSize())
	}
	if e.Artifact.LocalHash != "" {
		_, _ = fmt.Fprintf(tw, "SHA-256:\t%s\n", e.Artifact.LocalHash)
	}

	_, _ = fmt.Fprintln(tw)
	_ = tw.Flush()

	table := newTable(w, "State", "Changed")
	for _, s := range states {
		table.Append([]string{string(s.State), s.ChangedAt.UTC().Format(time.RFC3339)})
	}
	table.Render()
}
