package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/funvibe/tycheck/internal/cachestore"
	"github.com/funvibe/tycheck/internal/config"
	"github.com/funvibe/tycheck/internal/harness"
)

var projectPath string

var rootCmd = &cobra.Command{
	Use:   "tycheck",
	Short: "Code-flow narrowing engine for optionally-annotated code",
	Long: `tycheck computes the statically known type of a reference at a
program point, walking a control-flow graph backwards through
assignments, conditional tests, pattern matches, context managers and
never-returning calls.

Scenario files describe a flow graph and a set of queries in YAML; the
run command executes them and prints each query's answer.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run the queries of one or more scenario files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject()
		if err != nil {
			return err
		}

		// With a configured cache path, never-return verdicts from
		// earlier runs warm each scenario's engine, and fresh verdicts
		// are persisted afterwards.
		var store *cachestore.Store
		var seed map[string]bool
		if project != nil && project.CachePath != "" {
			store, err = cachestore.Open(project.CachePath)
			if err != nil {
				return err
			}
			defer store.Close()
			seed, err = store.LoadAll()
			if err != nil {
				return err
			}
		}

		for _, path := range args {
			scenario, err := harness.Load(path, project)
			if err != nil {
				return err
			}
			if len(seed) > 0 {
				scenario.Engine().SeedNoReturnVerdicts(seed)
			}
			report, err := scenario.Run()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			printReport(report)

			if store != nil {
				for key, verdict := range scenario.Engine().ExportNoReturnVerdicts() {
					if err := store.SaveVerdict(key, verdict); err != nil {
						return err
					}
				}
			}
		}
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph <scenario.yaml>",
	Short: "Dump a scenario's flow graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject()
		if err != nil {
			return err
		}
		scenario, err := harness.Load(args[0], project)
		if err != nil {
			return err
		}
		fmt.Print(scenario.DescribeGraph())
		return nil
	},
}

func loadProject() (*config.Project, error) {
	if projectPath == "" {
		if _, err := os.Stat("tycheck.yaml"); err == nil {
			projectPath = "tycheck.yaml"
		} else {
			return nil, nil
		}
	}
	return config.LoadProject(projectPath)
}

// Terminal colors, muted when stdout is not a TTY.
var (
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		colorBold, colorDim, colorCyan, colorReset = "", "", "", ""
	}

	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "path to tycheck.yaml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
}

func printReport(report *harness.Report) {
	fmt.Printf("%s%s%s  %srun %s%s\n", colorBold, report.Name, colorReset, colorDim, report.RunID, colorReset)
	for _, r := range report.Results {
		switch r.Kind {
		case "typeAt":
			incomplete := ""
			if r.Incomplete {
				incomplete = " (incomplete)"
			}
			fmt.Printf("  %s: %s%s%s%s\n", r.Description, colorCyan, r.Type, colorReset, incomplete)
		case "reachable":
			fmt.Printf("  %s: %s%v%s\n", r.Description, colorCyan, *r.Reachable, colorReset)
		case "narrowTypeVar":
			fmt.Printf("  %s: %s%s%s\n", r.Description, colorCyan, r.Constraint, colorReset)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
