package cmd

import (
	"fmt"

	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/spf13/cobra"
)

var cfgFile string
var workflowFile string

// exitCode is what the process exits with; run-style commands set it
// from the report so CI can gate on hard-stage outcomes
var exitCode int

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   "workflow-harness",
	Short: "An end-to-end workflow harness for the castorix CLI",
	Long: `workflow-harness drives the castorix command line client through
complete on-chain workflows: it boots a disposable local test node,
spawns the CLI inside a pseudo-terminal, answers its prompts, extracts
wallet addresses, FIDs and signer keys from the output, and feeds them
into later stages.

Every run ends with a machine-readable report; the exit code is zero
only when every hard stage passed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// CLI flags can override config settings
		debug, _ := cmd.Flags().GetBool("debug")
		logFormat, _ := cmd.Flags().GetString("log-format")
		echo, _ := cmd.Flags().GetBool("echo")

		// If a config file was explicitly specified, load that one instead
		if cmd.Flags().Changed("config") && cfgFile != "" {
			if err := config.Reload(cfgFile); err != nil {
				logger.LogError("Error loading config file", err, map[string]interface{}{
					"config_file": cfgFile,
				})
			}
		}

		// If CLI flags were explicitly provided, update the global config
		if cmd.Flags().Changed("debug") {
			config.Instance.Debug = debug
		}

		if cmd.Flags().Changed("log-format") {
			config.Instance.LogFormat = logFormat
		}

		if cmd.Flags().Changed("echo") {
			config.Instance.Echo = echo
		}

		// Logging was initialized before flag parsing; pick up overrides
		if cmd.Flags().Changed("config") || cmd.Flags().Changed("debug") || cmd.Flags().Changed("log-format") {
			if err := logger.InitLogger(logger.LoggerConfig{
				Debug:     config.Instance.Debug,
				LogFormat: config.Instance.LogFormat,
				LogFile:   config.Instance.LogFile,
			}); err != nil {
				logger.LogError("Error reinitializing logger", err, nil)
			}
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		// If a workflow is specified, execute it
		if workflowFile != "" {
			exitCode = executeWorkflow(workflowFile)
			return
		}

		// Otherwise show help
		cmd.Help()
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		logger.LogError("Command execution failed", err, nil)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")

	// Workflow file flag
	rootCmd.PersistentFlags().StringVarP(&workflowFile, "workflow", "w", "", "workflow to execute: a built-in name or a YAML file")

	// Debug flag
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	// Log format flag
	rootCmd.PersistentFlags().String("log-format", "human", "Log format: json or human")

	// Echo flag
	rootCmd.PersistentFlags().Bool("echo", false, "Mirror the child CLI's output to stdout")

	// Subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows the application version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("workflow-harness v0.1.0")
	},
}
