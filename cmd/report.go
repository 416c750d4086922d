package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/report"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// reportCmd groups report bundle utilities
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report bundle utilities",
}

var inspectDest string

// reportInspectCmd verifies and summarizes a previously written bundle
var reportInspectCmd = &cobra.Command{
	Use:   "inspect <bundle>",
	Short: "Verify a report bundle's checksum and summarize the run it holds",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bundle := args[0]

		if err := report.VerifyChecksum(bundle); err != nil {
			if stderrors.Is(err, errors.ErrFileNotFound) {
				logger.LogWarn("No checksum recorded for bundle", map[string]interface{}{
					"bundle": bundle,
				})
			} else {
				logger.LogError("Bundle checksum verification failed", err, nil)
				exitCode = 1
				return
			}
		}

		dest := inspectDest
		if dest == "" {
			tmp, err := fsutil.CreateTempDir("report-inspect-")
			if err != nil {
				logger.LogError("Failed to create extraction directory", err, nil)
				exitCode = 1
				return
			}
			defer os.RemoveAll(tmp)
			dest = tmp
		}

		rep, err := report.Inspect(bundle, dest)
		if err != nil {
			logger.LogError("Failed to inspect bundle", err, map[string]interface{}{
				"bundle": bundle,
			})
			exitCode = 1
			return
		}

		printReportSummary(rep)
		if inspectDest != "" {
			fmt.Printf("Extracted to: %s\n", inspectDest)
		}
	},
}

func init() {
	reportInspectCmd.Flags().StringVar(&inspectDest, "dest", "", "extract the bundle here instead of a throwaway directory")
	reportCmd.AddCommand(reportInspectCmd)
}

// printReportSummary renders a run report as a human-readable table
func printReportSummary(rep *workflow.Report) {
	duration := rep.Finished.Sub(rep.Started).Round(time.Millisecond)

	fmt.Printf("\nWorkflow: %s (%s)\n", rep.Workflow, rep.RunState)
	if rep.Host.OS != "" {
		fmt.Printf("Host:     %s/%s, %d cpus\n", rep.Host.OS, rep.Host.Arch, rep.Host.CPUs)
	}
	fmt.Printf("Started:  %s   Duration: %s\n\n", rep.Started.Format(time.RFC3339), duration)

	for i, s := range rep.Stages {
		fmt.Printf("%2d  %-24s %-5s %-5s %-8s %s\n",
			i+1, s.Name, s.Kind, s.Policy, s.State, s.Duration.Round(time.Millisecond))
		if s.Failure != nil {
			fmt.Printf("    %s: %s\n", s.Failure.Kind, s.Failure.Message)
		}
		if s.Notes != "" {
			fmt.Printf("    note: %s\n", s.Notes)
		}
	}

	if len(rep.Artifacts) > 0 {
		keys := make([]string, 0, len(rep.Artifacts))
		for k := range rep.Artifacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println("\nArtifacts:")
		for _, k := range keys {
			fmt.Printf("  %s = %v\n", k, rep.Artifacts[k])
		}
	}

	if rep.SetupFailure != nil {
		fmt.Printf("\nSetup failure: %s: %s\n", rep.SetupFailure.Kind, rep.SetupFailure.Message)
	}
	if rep.TeardownFailure != nil {
		fmt.Printf("\nTeardown failure: %s: %s\n", rep.TeardownFailure.Kind, rep.TeardownFailure.Message)
	}

	fmt.Printf("\nExit code: %d\n", rep.ExitCode())
}
