package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [NAME...]",
	Short: "Compare scenario output with the golden files",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := selectScenarios(cmd, args)
		if err != nil {
			return err
		}

		failed := 0
		out := cmd.OutOrStdout()
		for _, s := range scenarios {
			mismatches, err := s.Check(emitterOptions())
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", s.Name, err)
				continue
			}
			if len(mismatches) == 0 {
				fmt.Fprintf(out, "ok   %s\n", s.Name)
				continue
			}
			failed++
			fmt.Fprintf(out, "FAIL %s: %d line(s) differ\n", s.Name, len(mismatches))
			for _, m := range mismatches {
				fmt.Fprintf(out, "  line %d\n    want: %s\n    got:  %s\n", m.Line, m.Want, m.Got)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenario(s) failed", failed, len(scenarios))
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [NAME...]",
	Short: "Rewrite the golden files from the current output",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := selectScenarios(cmd, args)
		if err != nil {
			return err
		}
		for _, s := range scenarios {
			if err := s.Update(emitterOptions()); err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", s.GoldenPath())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(updateCmd)
}
