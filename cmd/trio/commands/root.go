// Package commands provides the CLI commands for the trio orchestrator.
package commands

import (
	"fmt"
	"os"

	"github.com/trioagent/trio/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	printLogs bool
	logLevel  string
	logFile   bool
)

var rootCmd = &cobra.Command{
	Use:     "trio",
	Short:   "trio - a three-agent pair-programming orchestrator",
	Long:    `trio coordinates an Architect, a Navigator, and a Driver to complete a software task within a project directory.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}

		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}

		logging.Init(logCfg)

		if logFile {
			logging.Info().
				Str("version", Version).
				Str("logFile", logging.GetLogFilePath()).
				Msg("trio started with file logging")
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file in /tmp")

	rootCmd.SetVersionTemplate(fmt.Sprintf("trio %s (%s)\n", Version, BuildTime))

	// "claude" is kept as the task-running subcommand name for backward
	// compatibility with the orchestrator this CLI grew out of (spec.md §6).
	rootCmd.AddCommand(claudeCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
