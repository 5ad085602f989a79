package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/cli/status"
	"github.com/andydunstall/fanout/cli/workload"
	pkgconfig "github.com/andydunstall/fanout/pkg/config"
	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/server"
	"github.com/andydunstall/fanout/server/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fanout [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Long: `Fanout is a node in a best-effort broadcast cluster.

Without a command, fanout runs a node that reads messages from stdin and
writes messages to stdout, one JSON document per line, so it can be run by
Maelstrom. Logs are written to stderr.

Values broadcast to any node are gossiped to every other node along a
binary fan-out tree. Each gossip message is resent until the receiving peer
acknowledges it, and each node periodically gossips every value it knows to
repair any gossip that was lost.

Start a node with:

  $ fanout

Expose the admin server with health, metrics and status endpoints:

  $ fanout --admin.bind-addr :8002

You can then inspect the status of the node using:

  $ fanout status node

Or run a cluster of nodes in-process to test convergence under message loss:

  $ fanout workload cluster --nodes 5 --drop-rate 0.2
`,
	}

	conf := config.Default()
	var loadConf pkgconfig.Config

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())
	loadConf.RegisterFlags(cmd.Flags())

	var logger log.Logger

	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		if err := pkgconfig.Load(conf, loadConf.Path, loadConf.ExpandEnv); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		if err := conf.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %s\n", err.Error())
			os.Exit(1)
		}

		var err error
		logger, err = log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		if err := runNode(conf, logger); err != nil {
			logger.Error("failed to run node", zap.Error(err))
			os.Exit(1)
		}
	}

	cmd.AddCommand(status.NewCommand())
	cmd.AddCommand(workload.NewCommand())

	return cmd
}

func runNode(conf *config.Config, logger log.Logger) error {
	logger.Info("starting node", zap.Any("conf", conf))
	//nolint
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	s := server.NewServer(conf, os.Stdin, os.Stdout, logger)
	return s.Run(ctx)
}

func init() {
	cobra.EnableCommandSorting = false
}
