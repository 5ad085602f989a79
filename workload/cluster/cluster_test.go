package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/fanout/server/broadcast"
)

func testGossipConfig() *broadcast.Config {
	conf := broadcast.Default()
	conf.AckTimeout = time.Millisecond * 20
	conf.MaxAckTimeout = time.Millisecond * 20
	conf.TickInterval = time.Millisecond * 50
	return conf
}

func broadcastValues(t *testing.T, c *Cluster, n int) []int {
	var values []int
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i != n; i++ {
		i := i
		values = append(values, i)
		nodeID := c.NodeIDs()[i%len(c.NodeIDs())]
		g.Go(func() error {
			return c.Broadcast(ctx, nodeID, i)
		})
	}
	require.NoError(t, g.Wait())
	return values
}

func TestCluster(t *testing.T) {
	t.Run("converge", func(t *testing.T) {
		c := NewCluster(
			WithNodes(5),
			WithGossipConfig(testGossipConfig()),
		)
		require.NoError(t, c.Start(context.Background()))
		defer func() {
			assert.NoError(t, c.Stop())
		}()

		values := broadcastValues(t, c, 20)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		require.NoError(t, c.WaitConverged(ctx, values))

		for _, id := range c.NodeIDs() {
			read, err := c.Read(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, values, read)
		}
	})

	// Tests the cluster converges with 20% of messages between nodes
	// dropped.
	t.Run("converge with loss", func(t *testing.T) {
		c := NewCluster(
			WithNodes(5),
			WithDropRate(0.2),
			WithMaxDelay(time.Millisecond*5),
			WithSeed(1),
			WithGossipConfig(testGossipConfig()),
		)
		require.NoError(t, c.Start(context.Background()))
		defer func() {
			assert.NoError(t, c.Stop())
		}()

		values := broadcastValues(t, c, 50)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
		defer cancel()
		require.NoError(t, c.WaitConverged(ctx, values))

		assert.Greater(t, c.NetworkStats().Dropped, uint64(0))
	})

	// Tests acknowledgement retries alone deliver every value when
	// anti-entropy is disabled.
	t.Run("converge without anti-entropy", func(t *testing.T) {
		conf := testGossipConfig()
		conf.DisableAntiEntropy = true

		c := NewCluster(
			WithNodes(4),
			WithDropRate(0.2),
			WithSeed(2),
			WithGossipConfig(conf),
		)
		require.NoError(t, c.Start(context.Background()))
		defer func() {
			assert.NoError(t, c.Stop())
		}()

		values := broadcastValues(t, c, 10)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
		defer cancel()
		require.NoError(t, c.WaitConverged(ctx, values))
	})

	t.Run("single node", func(t *testing.T) {
		c := NewCluster(WithNodes(1))
		require.NoError(t, c.Start(context.Background()))
		defer func() {
			assert.NoError(t, c.Stop())
		}()

		require.NoError(t, c.Broadcast(context.Background(), "n1", 3))
		read, err := c.Read(context.Background(), "n1")
		require.NoError(t, err)
		assert.Equal(t, []int{3}, read)

		node, ok := c.Node("n1")
		require.True(t, ok)
		assert.Empty(t, node.Identity().Peers)
	})

	t.Run("run id", func(t *testing.T) {
		first := NewCluster()
		_, err := uuid.Parse(first.RunID())
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID(), NewCluster().RunID())

		assert.Equal(t, "run-1", NewCluster(WithRunID("run-1")).RunID())
	})
}
