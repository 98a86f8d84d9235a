// File: cmd/dump.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entropydec/gsrb/internal/device"
	"github.com/entropydec/gsrb/internal/observability"
	"github.com/entropydec/gsrb/internal/snapshot"
)

var (
	dumpAgentURL string
	dumpOutPath  string
	dumpRaw      bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Capture the current UI hierarchy from a device agent.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		agentURL := dumpAgentURL
		if agentURL == "" {
			if len(appCfg.Device.AgentURLs) == 0 {
				return fmt.Errorf("no device agent configured; set device.agent_urls or pass --agent")
			}
			agentURL = appCfg.Device.AgentURLs[0]
		}

		drv := device.NewClient(agentURL, appCfg.Device, logger)
		raw, err := drv.DumpHierarchy(cmd.Context())
		if err != nil {
			return err
		}

		// Validate unless the caller explicitly wants the untouched dump.
		if !dumpRaw {
			if _, err := snapshot.Parse(raw, ""); err != nil {
				return err
			}
		}

		if dumpOutPath != "" {
			return os.WriteFile(dumpOutPath, []byte(raw), 0o644)
		}
		fmt.Println(raw)
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpAgentURL, "agent", "", "device agent base URL (overrides device.agent_urls)")
	dumpCmd.Flags().StringVarP(&dumpOutPath, "out", "o", "", "write the dump to this file instead of stdout")
	dumpCmd.Flags().BoolVar(&dumpRaw, "raw", false, "skip snapshot validation of the dump")
	rootCmd.AddCommand(dumpCmd)
}
