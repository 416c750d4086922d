package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/report"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// runCmd executes a workflow and exits with the report's verdict
var runCmd = &cobra.Command{
	Use:   "run [workflow]",
	Short: "Run a workflow against the CLI under test",
	Long: `Run executes a workflow: a built-in name (see "workflows"), a YAML
file path, or the workflow configured under workflow.file. With no
argument at all, the built-in "` + workflow.FarcasterComplete + `" workflow runs.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitCode = executeWorkflow(workflowSource(args))
	},
}

// workflowSource picks the workflow to run: argument, --workflow flag,
// configured file, then the default built-in
func workflowSource(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if workflowFile != "" {
		return workflowFile
	}
	if config.Instance.Workflow.File != "" {
		return config.Instance.Workflow.File
	}
	return workflow.FarcasterComplete
}

// loadWorkflow resolves a source to a workflow definition; built-in names
// take precedence over files
func loadWorkflow(source string) (*workflow.Workflow, error) {
	if wf, ok := workflow.Builtin(source); ok {
		return wf, nil
	}
	return workflow.LoadWorkflow(source)
}

// executeWorkflow runs one workflow end to end and returns the exit code
func executeWorkflow(source string) int {
	logger.LogInfo("Executing workflow", map[string]interface{}{
		"source": source,
	})

	wf, err := loadWorkflow(source)
	if err != nil {
		logger.LogError("Failed to load workflow", err, map[string]interface{}{
			"source": source,
		})
		return workflow.ExitSetupFailure
	}

	if errs := workflow.ValidateWorkflow(wf); len(errs) > 0 {
		for _, err := range errs {
			logger.LogError("Workflow validation error", err, nil)
		}
		logger.LogError("Workflow validation failed", fmt.Errorf("%d validation errors", len(errs)), nil)
		return workflow.ExitSetupFailure
	}

	if err := report.PrepareDir(config.Instance.Report.Dir); err != nil {
		logger.LogError("Failed to prepare report directory", err, map[string]interface{}{
			"dir": config.Instance.Report.Dir,
		})
		return workflow.ExitSetupFailure
	}

	// Interrupts cancel the run instead of orphaning the node
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := workflow.NewRunner(&config.Instance)
	rep := runner.Execute(ctx, wf)

	if _, err := report.Write(rep, config.Instance.Report.Dir); err != nil {
		logger.LogError("Failed to write run report", err, nil)
	} else if format := config.Instance.Report.BundleFormat; format != "" && format != "none" {
		if _, err := report.Bundle(config.Instance.Report.Dir, format); err != nil {
			logger.LogError("Failed to bundle report directory", err, nil)
		}
	}

	printReportSummary(rep)

	return rep.ExitCode()
}
