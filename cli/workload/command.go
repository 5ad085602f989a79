package workload

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "generate test workloads",
		Long: `Generate test workloads.

This tool runs a cluster of nodes in-process to test broadcast under
message loss and delay.

Examples:
  # Start a cluster of 5 nodes, broadcast 100 values with 20% of messages
  # between nodes dropped, and wait for every node to receive every value.
  fanout workload cluster --nodes 5 --values 100 --drop-rate 0.2
`,
	}

	cmd.AddCommand(newClusterCommand())

	return cmd
}
