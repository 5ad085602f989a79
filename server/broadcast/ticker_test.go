package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

func TestTicker(t *testing.T) {
	t.Run("tick", func(t *testing.T) {
		node, inbox, _ := newTestNode("n1", nil, testConfig())
		ticker := NewTicker(node, time.Millisecond*5, log.NewNopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			assert.NoError(t, ticker.Run(ctx))
		}()

		env, err := inbox.Receive(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "n1", env.Src)
		assert.Equal(t, "n1", env.Dest)
		assert.Equal(t, protocol.Tick{}, env.Body)
	})

	// Tests no further ticks are queued until the pending tick is
	// processed.
	t.Run("coalesce", func(t *testing.T) {
		node, inbox, _ := newTestNode("n1", nil, testConfig())
		ticker := NewTicker(node, time.Millisecond*5, log.NewNopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			assert.NoError(t, ticker.Run(ctx))
		}()

		_, err := inbox.Receive(context.Background(), time.Second)
		require.NoError(t, err)

		_, err = inbox.Receive(context.Background(), time.Millisecond*50)
		assert.ErrorIs(t, err, transport.ErrTimedOut)

		node.tickPending.Store(false)
		_, err = inbox.Receive(context.Background(), time.Second)
		require.NoError(t, err)
	})

	t.Run("inbox closed", func(t *testing.T) {
		node, inbox, _ := newTestNode("n1", nil, testConfig())
		ticker := NewTicker(node, time.Hour, log.NewNopLogger())

		inbox.Close()
		assert.NoError(t, ticker.Run(context.Background()))
	})

	t.Run("cancelled", func(t *testing.T) {
		node, _, _ := newTestNode("n1", nil, testConfig())
		ticker := NewTicker(node, time.Hour, log.NewNopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, ticker.Run(ctx))
	})
}
