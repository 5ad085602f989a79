package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/backoff"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

var (
	// ErrTimedOut is returned when a peer does not acknowledge gossip in
	// time.
	ErrTimedOut = errors.New("ack timed out")

	// ErrClosed is returned when the inbox closes or the node is stopped
	// while waiting for an acknowledgement.
	ErrClosed = errors.New("node closed")

	// ErrPeer is returned when the inbox fails while waiting for an
	// acknowledgement, such as receiving a malformed envelope.
	ErrPeer = errors.New("peer error")
)

// GossipPayload is the content of a gossip message to a peer.
type GossipPayload struct {
	Values []int

	// Forward contains the peers the receiver must forward the values to.
	Forward []string
}

// gossip delivers the payload to the peer, resending it with a new message
// ID each time the acknowledgement times out.
//
// Returns ErrTimedOut if the peer doesn't acknowledge within the configured
// maximum number of attempts.
func (n *Node) gossip(ctx context.Context, peer string, payload GossipPayload) error {
	b := backoff.New(
		n.config.MaxAttempts,
		n.config.AckTimeout,
		n.config.MaxAckTimeout,
	)
	for {
		timeout, ok := b.Next()
		if !ok {
			n.metrics.GossipAbandoned.Inc()
			return fmt.Errorf("%s: %d attempts: %w", peer, b.Attempts(), ErrTimedOut)
		}
		if b.Attempts() > 1 {
			n.metrics.GossipRetries.Inc()
			n.stats.retries.Inc()
		}

		msgID := n.nextMessageID()
		start := time.Now()
		err := n.sendAndAwait(ctx, peer, msgID, payload, timeout)
		if err == nil {
			n.metrics.AckLatency.Observe(time.Since(start).Seconds())
			return nil
		}
		if !errors.Is(err, ErrTimedOut) {
			return err
		}

		n.trackerLogger.Debug(
			"ack timed out; retrying",
			zap.String("peer", peer),
			zap.Uint64("msg-id", msgID),
			zap.Int("attempt", b.Attempts()),
			zap.Duration("timeout", timeout),
		)
	}
}

// sendAndAwait sends a gossip message with the given ID to the peer and waits
// for the matching acknowledgement.
//
// Any other envelope received while waiting is deferred to be processed in
// order once the wait completes. Gossip is acknowledged as soon as it is
// deferred, so two nodes gossiping to each other at the same time don't
// each wait for the other.
func (n *Node) sendAndAwait(
	ctx context.Context,
	peer string,
	msgID uint64,
	payload GossipPayload,
	timeout time.Duration,
) error {
	if err := n.send(peer, protocol.Gossip{
		MsgID:    msgID,
		Messages: payload.Values,
		Nodes:    payload.Forward,
	}); err != nil {
		return err
	}
	n.metrics.GossipOutbound.Inc()
	n.metrics.GossipValuesOutbound.Add(float64(len(payload.Values)))

	n.stats.pendingPeer.Store(peer)
	defer n.stats.pendingPeer.Store("")

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimedOut
		}

		env, err := n.inbox.Receive(ctx, remaining)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrTimedOut):
				return ErrTimedOut
			case errors.Is(err, transport.ErrClosed) || ctx.Err() != nil:
				return ErrClosed
			default:
				return fmt.Errorf("%w: %w", ErrPeer, err)
			}
		}

		if isAck(env, peer, msgID) {
			return nil
		}
		if err := n.deferEnvelope(env); err != nil {
			return err
		}
	}
}

func (n *Node) deferEnvelope(env protocol.Envelope) error {
	d := deferredEnvelope{env: env}
	if gossip, ok := env.Body.(protocol.Gossip); ok {
		if err := n.send(env.Src, protocol.GossipOK{
			MsgID:     n.nextMessageID(),
			InReplyTo: gossip.MsgID,
		}); err != nil {
			return err
		}
		d.acked = true
	}

	n.deferred = append(n.deferred, d)
	n.stats.deferred.Store(int64(len(n.deferred)))
	n.metrics.EnvelopesDeferred.Inc()
	return nil
}

func isAck(env protocol.Envelope, peer string, msgID uint64) bool {
	if env.Src != peer {
		return false
	}
	ack, ok := env.Body.(protocol.GossipOK)
	return ok && ack.InReplyTo == msgID
}
