package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"gcodegen/pkg/gcode"
	"gcodegen/pkg/log"
	"gcodegen/pkg/scenario"
)

var rootCmd = &cobra.Command{
	Use:   "gcodegen-golden",
	Short: "Replay G-code emitter scenarios against golden output",
	Long: `gcodegen-golden loads YAML scenarios, replays their emitter calls and
compares the generated G-code with the .gcode file stored next to each one.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		root := log.New("gcodegen")
		root.SetLevel(log.ParseLevel(level))
		// GCODEGEN_LOG_LEVEL applies unless the flag was given.
		if !cmd.Flags().Changed("log-level") {
			log.ConfigureFromEnv(root)
		}
		log.SetDefaultLogger(root)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", "testdata", "Directory containing the scenario files")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// selectScenarios loads the scenario directory and keeps the named ones,
// or all of them when no names are given.
func selectScenarios(cmd *cobra.Command, names []string) ([]*scenario.Scenario, error) {
	dir, _ := cmd.Flags().GetString("dir")
	all, err := scenario.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	if len(names) == 0 {
		return all, nil
	}

	var out []*scenario.Scenario
	for _, s := range all {
		if slices.Contains(names, s.Name) {
			out = append(out, s)
		}
	}
	if len(out) != len(names) {
		var missing []string
		for _, name := range names {
			if !slices.ContainsFunc(out, func(s *scenario.Scenario) bool { return s.Name == name }) {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("unknown scenario(s) in %s: %s", dir, strings.Join(missing, ", "))
	}
	return out, nil
}

func emitterOptions() gcode.Options {
	return gcode.Options{Logger: log.GetLogger("gcode")}
}
