package workload

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pkgconfig "github.com/andydunstall/fanout/pkg/config"
	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/workload/cluster"
	"github.com/andydunstall/fanout/workload/cluster/config"
)

func newClusterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "run a cluster of nodes and broadcast values",
		Long: `Run a cluster of nodes and broadcast values.

Starts the nodes in-process connected by an in-memory network, performs the
init handshake with each, then broadcasts values to random nodes at the
configured rate. Once every value has been broadcast, waits for every node to
read every value and logs how long the cluster took to converge.

Examples:
  # Start a cluster of 5 nodes and broadcast 100 values.
  fanout workload cluster --nodes 5 --values 100

  # Drop 20% of messages between nodes and delay each by up to 50ms.
  fanout workload cluster --drop-rate 0.2 --max-delay 50ms
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
			fmt.Println(err.Error())
			os.Exit(1)
		}

		if err := conf.Validate(); err != nil {
			fmt.Printf("config: %s\n", err.Error())
			os.Exit(1)
		}

		var err error
		logger, err = log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Printf("failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		if err := runCluster(conf, logger); err != nil {
			logger.Error("failed to run cluster", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func runCluster(conf *config.Config, logger log.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	c := cluster.NewCluster(
		cluster.WithNodes(conf.Nodes),
		cluster.WithDropRate(conf.DropRate),
		cluster.WithMaxDelay(conf.MaxDelay),
		cluster.WithGossipConfig(&conf.Gossip),
		cluster.WithLogger(logger),
	)
	logger = logger.With(zap.String("run-id", c.RunID()))
	logger.Info("starting cluster", zap.Any("config", conf))

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			logger.Warn("failed to stop cluster", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(conf.Rate))
	defer ticker.Stop()

	start := time.Now()

	var values []int
	for i := 0; i != conf.Values; i++ {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}

		nodeIDs := c.NodeIDs()
		nodeID := nodeIDs[rand.Intn(len(nodeIDs))]
		if err := c.Broadcast(ctx, nodeID, i); err != nil {
			return fmt.Errorf("broadcast: %w", err)
		}
		values = append(values, i)
	}

	logger.Info(
		"broadcast values; waiting to converge",
		zap.Int("values", len(values)),
		zap.Duration("elapsed", time.Since(start)),
	)

	convergeStart := time.Now()

	waitCtx, waitCancel := context.WithTimeout(ctx, conf.Timeout)
	defer waitCancel()
	if err := c.WaitConverged(waitCtx, values); err != nil {
		return fmt.Errorf("converge: %w", err)
	}

	stats := c.NetworkStats()
	logger.Info(
		"cluster converged",
		zap.Duration("converge-time", time.Since(convergeStart)),
		zap.Duration("total-time", time.Since(start)),
		zap.Uint64("messages-sent", stats.Sent),
		zap.Uint64("messages-dropped", stats.Dropped),
	)

	var retries uint64
	for _, id := range c.NodeIDs() {
		if node, ok := c.Node(id); ok {
			retries += node.Info().Retries
		}
	}
	logger.Info("gossip retries", zap.Uint64("retries", retries))

	fmt.Printf("run %s converged: %d values, %d nodes\n", c.RunID(), len(values), len(c.NodeIDs()))

	return nil
}
