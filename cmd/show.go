// File: cmd/show.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entropydec/gsrb/api/schemas"
	"github.com/entropydec/gsrb/internal/script"
	"github.com/entropydec/gsrb/internal/snapshot"
)

var showVerbose bool

var showCmd = &cobra.Command{
	Use:   "show <script.jsonl|backtrace.jsonl>",
	Short: "Render a recorded script or a repair backtrace in human-readable form.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Script files carry typed records; anything else is a backtrace.
		if s, err := script.LoadFile(args[0]); err == nil {
			printScript(s)
			return nil
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		entries, err := script.LoadBacktrace(f)
		if err != nil {
			return fmt.Errorf("%s is neither a script nor a backtrace: %w", args[0], err)
		}
		printBacktrace(entries)
		return nil
	},
}

func printScript(s *schemas.Script) {
	if s.Package != "" {
		fmt.Printf("package: %s\n", s.Package)
	}
	for i, a := range s.Actions {
		fmt.Printf("step %d  %-10s", i, a.Kind)
		if a.Target != nil {
			fmt.Printf("  %s", snapshot.DigestTarget(a.Target))
		}
		if len(a.Parameters) > 0 {
			var parts []string
			for k, v := range a.Parameters {
				parts = append(parts, fmt.Sprintf("%s=%s", k, v))
			}
			fmt.Printf("  {%s}", strings.Join(parts, " "))
		}
		fmt.Println()
	}
	fmt.Printf("\n%d steps\n", len(s.Actions))
}

func printBacktrace(entries []schemas.BacktraceEntry) {
	for _, e := range entries {
		fmt.Printf("step %d  %-10s  %-12s", e.StepIndex, e.Action.Kind, e.Verdict.Kind)
		switch e.Verdict.Kind {
		case schemas.VerdictResolved:
			fmt.Printf("  confidence %.3f", e.Verdict.Confidence)
			if e.Verdict.Winner != nil {
				fmt.Printf("  -> %s", snapshot.DigestTarget(&e.Verdict.Winner.Target))
			}
		case schemas.VerdictAmbiguous:
			fmt.Printf("  %d candidates", len(e.Verdict.Candidates))
		case schemas.VerdictUnresolvable:
			fmt.Printf("  %s", e.Verdict.Reason)
		}
		if e.Verdict.DisambiguatorUsed {
			fmt.Print("  [classifier consulted]")
		}
		fmt.Println()

		if showVerbose {
			fmt.Printf("  recorded: %s\n", snapshot.DigestTarget(e.Action.Target))
			for i, c := range e.Verdict.Candidates {
				fmt.Printf("  %d: %s (score %.3f)\n", i, snapshot.DigestTarget(&c.Target), c.Score)
			}
			if e.Exchange != nil && e.Exchange.Err != "" {
				fmt.Printf("  classifier error: %s\n", e.Exchange.Err)
			}
		}
	}

	resolved, ambiguous, unresolvable := 0, 0, 0
	for _, e := range entries {
		switch e.Verdict.Kind {
		case schemas.VerdictResolved:
			resolved++
		case schemas.VerdictAmbiguous:
			ambiguous++
		case schemas.VerdictUnresolvable:
			unresolvable++
		}
	}
	fmt.Printf("\n%d attempts: %d resolved, %d ambiguous, %d unresolvable\n",
		len(entries), resolved, ambiguous, unresolvable)
}

func init() {
	showCmd.Flags().BoolVarP(&showVerbose, "verbose", "v", false, "show candidates and classifier details per attempt")
	rootCmd.AddCommand(showCmd)
}
