// File: cmd/diff_layout.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/aligner"
	"github.com/entropydec/gsrb/internal/observability"
	"github.com/entropydec/gsrb/internal/snapshot"
)

var diffLayoutCmd = &cobra.Command{
	Use:   "diff-layout <before.xml> <after.xml>",
	Short: "Align two hierarchy dumps leaf by leaf and report how much the layout drifted.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		before, err := loadSnapshotFile(args[0])
		if err != nil {
			return err
		}
		after, err := loadSnapshotFile(args[1])
		if err != nil {
			return err
		}

		al := aligner.New(appCfg.Scorer, appCfg.Aligner, logger)
		diff := al.AlignTrees(before, after)

		fmt.Printf("layout score: %.3f (match: %v)\n", diff.Score, diff.Match)
		fmt.Printf("matched: %d  possible: %d  lost: %d  new: %d\n",
			len(diff.Matched), len(diff.Possible), len(diff.UnmatchedBefore), len(diff.UnmatchedAfter))

		if len(diff.UnmatchedBefore) > 0 {
			fmt.Println("\nelements with no counterpart in the new layout:")
			for _, n := range diff.UnmatchedBefore {
				fmt.Printf("  - %s\n", snapshot.Digest(n))
			}
		}
		if len(diff.UnmatchedAfter) > 0 {
			fmt.Println("\nelements new in the current layout:")
			for _, n := range diff.UnmatchedAfter {
				fmt.Printf("  + %s\n", snapshot.Digest(n))
			}
		}
		return nil
	},
}

// loadSnapshotFile parses a hierarchy dump from disk.
func loadSnapshotFile(path string) (*schemas.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	snap, err := snapshot.Parse(string(raw), "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func init() {
	rootCmd.AddCommand(diffLayoutCmd)
}
