package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

func TestHandshake(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		inbox := transport.NewInbox(8)
		sender := newFakeSender()

		push(t, inbox, "c0", "n2", protocol.Init{
			MsgID:   1,
			NodeID:  "n2",
			NodeIDs: []string{"n1", "n2", "n3"},
		})

		identity, err := Handshake(context.Background(), inbox, sender)
		require.NoError(t, err)
		assert.Equal(t, NodeIdentity{
			ID:    "n2",
			Peers: []string{"n1", "n3"},
		}, identity)

		env := sender.Next(t)
		assert.Equal(t, "n2", env.Src)
		assert.Equal(t, "c0", env.Dest)
		initOK, ok := env.Body.(protocol.InitOK)
		require.True(t, ok)
		assert.Equal(t, uint64(1), initOK.InReplyTo)
	})

	t.Run("single node", func(t *testing.T) {
		inbox := transport.NewInbox(8)
		sender := newFakeSender()

		push(t, inbox, "c0", "n1", protocol.Init{
			MsgID:   1,
			NodeID:  "n1",
			NodeIDs: []string{"n1"},
		})

		identity, err := Handshake(context.Background(), inbox, sender)
		require.NoError(t, err)
		assert.Empty(t, identity.Peers)
	})

	t.Run("unexpected message", func(t *testing.T) {
		inbox := transport.NewInbox(8)
		sender := newFakeSender()

		push(t, inbox, "c1", "n1", protocol.Read{MsgID: 1})

		_, err := Handshake(context.Background(), inbox, sender)
		assert.ErrorContains(t, err, "expected init: got read")
		assert.True(t, sender.Empty())
	})

	t.Run("closed", func(t *testing.T) {
		inbox := transport.NewInbox(8)
		inbox.Close()

		_, err := Handshake(context.Background(), inbox, newFakeSender())
		assert.ErrorIs(t, err, transport.ErrClosed)
	})
}
