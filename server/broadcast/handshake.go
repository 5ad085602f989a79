package broadcast

import (
	"context"
	"fmt"

	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

// Handshake waits for the 'init' message that must be the first envelope
// received by the node, and replies with 'init_ok'.
//
// Returns the identity of the local node, whose peers exclude the local node
// itself.
func Handshake(
	ctx context.Context,
	inbox *transport.Inbox,
	sender transport.Sender,
) (NodeIdentity, error) {
	env, err := inbox.Receive(ctx, 0)
	if err != nil {
		return NodeIdentity{}, fmt.Errorf("receive init: %w", err)
	}

	initBody, ok := env.Body.(protocol.Init)
	if !ok {
		return NodeIdentity{}, fmt.Errorf("expected init: got %s", env.Body.Type())
	}

	peers := make([]string, 0, len(initBody.NodeIDs))
	for _, id := range initBody.NodeIDs {
		if id != initBody.NodeID {
			peers = append(peers, id)
		}
	}

	if err := sender.Send(protocol.Envelope{
		Src:  initBody.NodeID,
		Dest: env.Src,
		Body: protocol.InitOK{InReplyTo: initBody.MsgID},
	}); err != nil {
		return NodeIdentity{}, fmt.Errorf("send init_ok: %w", err)
	}

	return NodeIdentity{
		ID:    initBody.NodeID,
		Peers: peers,
	}, nil
}
