package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/framerelay/internal/types"
)

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().String("caption", "", "caption text (required)")
	processCmd.Flags().String("image", "", "image path (default: newest capture)")
	processCmd.Flags().String("source", "cli", "event source tag")
	_ = processCmd.MarkFlagRequired("caption")
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one capture event through the pipeline synchronously",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		caption, _ := cmd.Flags().GetString("caption")
		image, _ := cmd.Flags().GetString("image")
		source, _ := cmd.Flags().GetString("source")

		coord, _, err := buildCoordinator(cfg)
		if err != nil {
			return err
		}

		event, err := coord.ResolveEvent(types.InboundEvent{
			ImagePath: image,
			Caption:   caption,
			Source:    source,
		})
		if err != nil {
			return fmt.Errorf("resolve event: %w", err)
		}

		record, err := coord.ProcessSync(context.Background(), event)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(out))

		if record.Stage == types.StageFailed {
			return fmt.Errorf("event failed at %s: %s", record.FailedStage, record.Error)
		}
		return nil
	},
}
