package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvmesh/livefts/internal/daemon"
	"github.com/kvmesh/livefts/internal/output"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a node's daemon is running, and what it is serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	daemonCfg := daemon.NodeConfig(nodeID)
	client := daemon.NewClient(daemonCfg)
	if !client.IsRunning() {
		out.Warningf("No daemon running for node %q (socket: %s)", nodeID, daemonCfg.SocketPath)
		return nil
	}

	status, err := client.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}

	out.Successf("Node %q is running (pid %d, up %s)", status.NodeID, status.PID, status.Uptime)
	if len(status.MapsIndexed) == 0 {
		out.Status("", "No maps indexed")
	} else {
		out.Statusf("", "Maps indexed: %v", status.MapsIndexed)
	}
	out.Statusf("", "Standing subscriptions: %d", status.Subscriptions)
	return nil
}
