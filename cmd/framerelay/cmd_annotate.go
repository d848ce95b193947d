package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/framerelay/internal/annotate"
	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/types"
)

func init() {
	rootCmd.AddCommand(annotateCmd)
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <image>",
	Short: "Redraw the annotated artifact from the sidecar's recorded detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath := args[0]

		doc, err := captures.NewStore().Load(imagePath)
		if err != nil {
			return fmt.Errorf("load sidecar: %w", err)
		}
		section, ok := doc["detection"].(map[string]any)
		if !ok {
			return fmt.Errorf("no detection recorded for %s", imagePath)
		}

		// Round-trip the stored result back into the typed form.
		raw, err := json.Marshal(section["result"])
		if err != nil {
			return fmt.Errorf("marshal detection result: %w", err)
		}
		var result types.DetectionResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("parse detection result: %w", err)
		}

		artifact, err := annotate.NewWriter().WriteAnnotated(imagePath, &result, nil)
		if err != nil {
			return fmt.Errorf("write annotated image: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Annotated %s (%d boxes) -> %s\n",
			imagePath, len(result.Detections), artifact)
		return nil
	},
}
