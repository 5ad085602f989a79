package status

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/andydunstall/fanout/server/status/client"
	"github.com/andydunstall/fanout/server/status/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect node status",
		Long: `Inspect node status.

Each node started with '--admin.bind-addr' exposes a status API to inspect
the state of the node, such as the number of values it knows and how many
gossip messages it has had to resend.

See 'status --help' for the available commands.

Examples:
  # Inspect the node listening on the default admin address.
  fanout status node

  # Inspect the node with admin address 10.26.104.56:8002.
  fanout status node --server.url http://10.26.104.56:8002
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.PersistentFlags())

	c := client.NewClient(nil)

	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("config: %s\n", err.Error())
			os.Exit(1)
		}

		url, _ := url.Parse(conf.Server.URL)
		c.SetURL(url)
	}

	cmd.AddCommand(newNodeCommand(c))

	return cmd
}
