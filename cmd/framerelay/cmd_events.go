package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/framerelay/internal/state"
	"github.com/user/framerelay/internal/types"
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Int("limit", 20, "maximum records to show")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent event records from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		limit, _ := cmd.Flags().GetInt("limit")

		journal := state.NewJournal(cfg.DataDir)
		records, err := journal.Tail(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No recorded events.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tSTAGE\tDETECTIONS\tSOURCE\tCOMPLETED")
		for _, r := range records {
			detections := 0
			if r.Detection != nil {
				detections = len(r.Detection.Detections)
			}
			stage := string(r.Stage)
			if r.Stage == types.StageFailed {
				stage = fmt.Sprintf("failed@%s (%s)", r.FailedStage, r.FailureKind)
			}
			source := r.Event.Source
			if source == "" {
				source = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				r.Event.ID,
				stage,
				detections,
				source,
				r.CompletedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}
