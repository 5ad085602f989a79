package status

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/fanout/server/status/client"
)

func newNodeCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "inspect the node state",
		Long: `Inspect the node state.

Queries the node for its ID, peers, number of known values, last message ID,
number of gossip retries and number of deferred messages.

Examples:
  fanout status node
`,
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		showNode(c)
	}

	return cmd
}

func showNode(c *client.Client) {
	info, err := client.NewNode(c).Info()
	if err != nil {
		fmt.Printf("failed to get node: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(info)
	fmt.Println(string(b))
}
