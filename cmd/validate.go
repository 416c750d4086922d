package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// validateCmd checks a workflow definition without running anything
var validateCmd = &cobra.Command{
	Use:   "validate [workflow]",
	Short: "Validate a workflow without running it",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := workflowSource(args)

		wf, err := loadWorkflow(source)
		if err != nil {
			logger.LogError("Failed to load workflow", err, map[string]interface{}{
				"source": source,
			})
			exitCode = 1
			return
		}

		if errs := workflow.ValidateWorkflow(wf); len(errs) > 0 {
			for _, err := range errs {
				logger.LogError("Workflow validation error", err, nil)
			}
			exitCode = 1
			return
		}

		hard := 0
		for _, stage := range wf.Stages {
			if stage.Policy == workflow.PolicyHard {
				hard++
			}
		}

		fmt.Printf("%s is valid: %d stages (%d hard), needs_node=%v\n",
			wf.Name, len(wf.Stages), hard, wf.NeedsNode)
	},
}
