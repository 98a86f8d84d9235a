// File: cmd/batch.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entropydec/gsrb/internal/engine"
	"github.com/entropydec/gsrb/internal/observability"
)

var batchReportPath string

var batchCmd = &cobra.Command{
	Use:   "batch-repair <bundle>...",
	Short: "Repair many scripts concurrently, one device agent per worker slot.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		client, err := buildLLMClient(logger)
		if err != nil {
			return err
		}

		runner := engine.NewBatchRunner(appCfg, client, logger)
		report, err := runner.Run(cmd.Context(), args)
		if err != nil {
			return err
		}

		out := os.Stdout
		if batchReportPath != "" {
			f, err := os.Create(batchReportPath)
			if err != nil {
				return fmt.Errorf("creating report file: %w", err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		for _, r := range report.Results {
			if r.Err != "" {
				return fmt.Errorf("batch finished with failures; see report")
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchReportPath, "report", "", "write the JSON batch report to this file instead of stdout")
	rootCmd.AddCommand(batchCmd)
}
