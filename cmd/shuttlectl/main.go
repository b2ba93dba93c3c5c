// Command shuttlectl is the single binary that runs every shuttle role:
// a coordinator, a worker pulling work for one DAG node, and the CLI that
// submits and inspects jobs against a running coordinator.
package main

import (
	"fmt"
	"os"

	"github.com/shuttle-mr/shuttle/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shuttlectl",
	Short: "shuttle - a MapReduce-style distributed batch processing framework",
	Long: `shuttlectl runs shuttle's coordinator and worker processes and
drives jobs against a running cluster: submit a DAG of map/reduce stages,
watch it split input into work units, shuffle intermediate data, and
report each stage to completion.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("shuttlectl version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(sortfileCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(queryCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
