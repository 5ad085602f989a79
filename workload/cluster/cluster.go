package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/fanout/pkg/backoff"
	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
	"github.com/andydunstall/fanout/server/broadcast"
)

// Cluster runs a cluster of broadcast nodes in-process, connected by an
// in-memory network that may drop and delay gossip between nodes.
type Cluster struct {
	runID string

	nodeIDs []string
	nodes   map[string]*broadcast.Node

	network *transport.Network
	client  *Client

	gossipConf *broadcast.Config

	cancel func()
	group  *errgroup.Group

	logger log.Logger
}

func NewCluster(opts ...Option) *Cluster {
	options := options{
		nodes:  3,
		seed:   time.Now().UnixNano(),
		runID:  uuid.NewString(),
		gossip: broadcast.Default(),
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	var nodeIDs []string
	for i := 0; i != options.nodes; i++ {
		nodeIDs = append(nodeIDs, fmt.Sprintf("n%d", i+1))
	}

	logger := options.logger.With(zap.String("run-id", options.runID))

	network := transport.NewNetwork(
		transport.WithDropRate(options.dropRate),
		transport.WithMaxDelay(options.maxDelay),
		transport.WithSeed(options.seed),
		transport.WithNetworkLogger(logger),
	)

	return &Cluster{
		runID:      options.runID,
		nodeIDs:    nodeIDs,
		nodes:      make(map[string]*broadcast.Node),
		network:    network,
		client:     NewClient(network.Endpoint("c1"), logger),
		gossipConf: options.gossip,
		logger:     logger.WithSubsystem("workload.cluster"),
	}
}

// RunID returns the ID of this cluster run, which is attached to every log
// record of the cluster and its nodes.
func (c *Cluster) RunID() string {
	return c.runID
}

func (c *Cluster) NodeIDs() []string {
	return c.nodeIDs
}

// Node returns the node with the given ID. Only valid after Start.
func (c *Cluster) Node(id string) (*broadcast.Node, bool) {
	node, ok := c.nodes[id]
	return node, ok
}

func (c *Cluster) NetworkStats() transport.NetworkStats {
	return c.network.Stats()
}

// Start starts every node and waits for each to complete the init
// handshake.
func (c *Cluster) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group, runCtx = errgroup.WithContext(runCtx)

	c.group.Go(func() error {
		return c.client.Run(runCtx)
	})

	identities := make(chan broadcast.NodeIdentity, len(c.nodeIDs))
	for _, id := range c.nodeIDs {
		endpoint := c.network.Endpoint(id)
		c.group.Go(func() error {
			identity, err := broadcast.Handshake(runCtx, endpoint.Inbox(), endpoint)
			if err != nil {
				if runCtx.Err() != nil {
					return nil
				}
				return fmt.Errorf("node %s: handshake: %w", endpoint.ID(), err)
			}
			identities <- identity
			return nil
		})
	}

	for _, id := range c.nodeIDs {
		_, err := c.client.Request(ctx, id, func(msgID uint64) protocol.Body {
			return protocol.Init{
				MsgID:   msgID,
				NodeID:  id,
				NodeIDs: c.nodeIDs,
			}
		})
		if err != nil {
			return fmt.Errorf("init %s: %w", id, err)
		}
	}

	for range c.nodeIDs {
		var identity broadcast.NodeIdentity
		select {
		case identity = <-identities:
		case <-runCtx.Done():
			return fmt.Errorf("handshake: %w", c.group.Wait())
		}
		endpoint := c.network.Endpoint(identity.ID)

		node := broadcast.NewNode(
			identity,
			endpoint.Inbox(),
			endpoint,
			c.gossipConf,
			broadcast.WithLogger(c.logger),
		)
		c.nodes[identity.ID] = node

		c.group.Go(func() error {
			if err := node.Run(runCtx); err != nil {
				return fmt.Errorf("node %s: %w", identity.ID, err)
			}
			return nil
		})

		if !c.gossipConf.DisableAntiEntropy {
			ticker := broadcast.NewTicker(node, c.gossipConf.TickInterval, c.logger)
			c.group.Go(func() error {
				return ticker.Run(runCtx)
			})
		}
	}

	c.logger.Info(
		"started cluster",
		zap.Strings("node-ids", c.nodeIDs),
	)

	return nil
}

// Broadcast submits the value to the node.
func (c *Cluster) Broadcast(ctx context.Context, nodeID string, value int) error {
	env, err := c.client.Request(ctx, nodeID, func(msgID uint64) protocol.Body {
		return protocol.Broadcast{
			MsgID:   msgID,
			Message: value,
		}
	})
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if _, ok := env.Body.(protocol.BroadcastOK); !ok {
		return fmt.Errorf("broadcast: unexpected reply: %s", env.Body.Type())
	}
	return nil
}

// Read returns the values known by the node, sorted.
func (c *Cluster) Read(ctx context.Context, nodeID string) ([]int, error) {
	env, err := c.client.Request(ctx, nodeID, func(msgID uint64) protocol.Body {
		return protocol.Read{
			MsgID: msgID,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	readOK, ok := env.Body.(protocol.ReadOK)
	if !ok {
		return nil, fmt.Errorf("read: unexpected reply: %s", env.Body.Type())
	}

	values := append([]int{}, readOK.Messages...)
	sort.Ints(values)
	return values, nil
}

// WaitConverged waits until every node has read every value.
func (c *Cluster) WaitConverged(ctx context.Context, values []int) error {
	b := backoff.New(0, time.Millisecond*10, time.Millisecond*250)
	for {
		converged, err := c.converged(ctx, values)
		if err != nil {
			return err
		}
		if converged {
			return nil
		}

		if !b.Wait(ctx) {
			return fmt.Errorf("not converged: %w", ctx.Err())
		}
	}
}

func (c *Cluster) converged(ctx context.Context, values []int) (bool, error) {
	for _, id := range c.nodeIDs {
		read, err := c.Read(ctx, id)
		if err != nil {
			return false, err
		}

		known := make(map[int]struct{}, len(read))
		for _, v := range read {
			known[v] = struct{}{}
		}
		for _, v := range values {
			if _, ok := known[v]; !ok {
				c.logger.Debug(
					"node missing value",
					zap.String("node-id", id),
					zap.Int("value", v),
				)
				return false, nil
			}
		}
	}
	return true, nil
}

// Stop stops every node and waits for them to exit.
func (c *Cluster) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.network.Close()

	if c.group != nil {
		return c.group.Wait()
	}
	return nil
}
