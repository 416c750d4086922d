package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/node"
)

// probeCmd checks whether a node answers RPC at the configured endpoint.
// It never starts one; use it against nodes managed elsewhere.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether a test node answers at the configured endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		retries := config.Instance.Node.ProbeRetries
		interval := config.Instance.Node.ProbeInterval
		if cmd.Flags().Changed("retries") {
			retries, _ = cmd.Flags().GetInt("retries")
		}
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}

		url := config.NodeURL()
		health := node.ProbeEndpoint(context.Background(), url, config.Instance.RPC.Timeout, retries, interval)

		fmt.Printf("%s: %s\n", url, health)
		if health != node.HealthHealthy {
			exitCode = 1
		}
	},
}

func init() {
	probeCmd.Flags().Int("retries", 0, "probe attempts (0 = configured value)")
	probeCmd.Flags().Duration("interval", 0, "wait between attempts (0 = configured value)")
}
