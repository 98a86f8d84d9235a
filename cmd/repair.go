// File: cmd/repair.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/device"
	"github.com/entropydec/gsrb/internal/engine"
	"github.com/entropydec/gsrb/internal/llmclient"
	"github.com/entropydec/gsrb/internal/observability"
	"github.com/entropydec/gsrb/internal/script"
)

var repairAgentURL string

var repairCmd = &cobra.Command{
	Use:   "repair <bundle>",
	Short: "Replay one recorded script on a live device, repairing drifted locators as it goes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		bundle, err := script.LoadBundle(args[0])
		if err != nil {
			return err
		}

		agentURL := repairAgentURL
		if agentURL == "" {
			if len(appCfg.Device.AgentURLs) == 0 {
				return fmt.Errorf("no device agent configured; set device.agent_urls or pass --agent")
			}
			agentURL = appCfg.Device.AgentURLs[0]
		}

		client, err := buildLLMClient(logger)
		if err != nil {
			return err
		}

		drv := device.NewClient(agentURL, appCfg.Device, logger)
		eng := engine.New(appCfg, client, drv, drv, logger)

		repaired, runErr := eng.RepairScript(cmd.Context(), bundle)

		// The backtrace is written even when the replay aborted early.
		tracePath := filepath.Join(bundle.Dir, "backtrace.jsonl")
		if err := writeBacktrace(tracePath, eng.Recorder().Export()); err != nil {
			logger.Error("Failed to write backtrace.", zap.Error(err))
		}

		summary := eng.Recorder().Summarize()
		fmt.Printf("run %s: %d attempts, %d resolved, %d ambiguous, %d unresolvable\n",
			summary.RunID, summary.Total, summary.Resolved, summary.Ambiguous, summary.Unresolvable)

		if runErr != nil {
			return runErr
		}

		out, err := bundle.SaveRepaired(repaired)
		if err != nil {
			return err
		}
		fmt.Printf("repaired script written to %s (%d/%d steps)\n", out, len(repaired.Actions), len(bundle.Script.Actions))
		return nil
	},
}

func init() {
	repairCmd.Flags().StringVar(&repairAgentURL, "agent", "", "device agent base URL (overrides device.agent_urls)")
	rootCmd.AddCommand(repairCmd)
}

// buildLLMClient constructs the tie-breaker client, or nil when disabled.
func buildLLMClient(logger *zap.Logger) (schemas.LLMClient, error) {
	if !appCfg.Disambiguator.Enabled {
		return nil, nil
	}
	return llmclient.NewClient(appCfg.LLM, logger)
}

func writeBacktrace(path string, entries []schemas.BacktraceEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := script.SaveBacktrace(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
