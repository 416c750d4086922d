package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// workflowsCmd lists the workflows compiled into the harness
var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List the built-in workflows",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range workflow.BuiltinNames() {
			wf, ok := workflow.Builtin(name)
			if !ok {
				continue
			}
			fmt.Printf("%-22s %2d stages  needs_node=%-5v  %s\n",
				name, len(wf.Stages), wf.NeedsNode, wf.Description)
		}
	},
}
