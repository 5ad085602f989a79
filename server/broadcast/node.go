package broadcast

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

// NodeIdentity identifies the local node and its peers. It is fixed for the
// lifetime of the node.
type NodeIdentity struct {
	ID string `json:"id"`

	// Peers contains the IDs of the other nodes in the cluster, excluding
	// the local node.
	Peers []string `json:"peers"`
}

// NodeInfo contains a point in time view of the node state.
type NodeInfo struct {
	ID          string   `json:"id"`
	Peers       []string `json:"peers"`
	Values      int64    `json:"values"`
	MessageID   uint64   `json:"message_id"`
	Retries     uint64   `json:"retries"`
	Deferred    int64    `json:"deferred"`
	PendingPeer string   `json:"pending_peer,omitempty"`
}

// nodeStats are published by the dispatch loop so they can be read from
// other goroutines.
type nodeStats struct {
	values      *atomic.Int64
	messageID   *atomic.Uint64
	retries     *atomic.Uint64
	deferred    *atomic.Int64
	pendingPeer *atomic.String
}

type deferredEnvelope struct {
	env protocol.Envelope

	// acked is true if the envelope is gossip that has already been
	// acknowledged.
	acked bool
}

// Node is the dispatch loop of the local node.
//
// The node processes envelopes from its inbox one at a time. It is the only
// owner of the value store, message ID counter and deferred envelopes, so
// none of them require locking.
type Node struct {
	identity NodeIdentity

	store *Store

	// messageID is the last 'msg_id' used by the node. IDs are never
	// reused.
	messageID uint64

	// deferred contains envelopes received while waiting for an
	// acknowledgement. They are processed in order before reading from the
	// inbox again.
	deferred []deferredEnvelope

	inbox  *transport.Inbox
	sender transport.Sender

	config *Config

	// tickPending is set when a tick has been pushed to the inbox and not
	// yet processed.
	tickPending *atomic.Bool

	stats   nodeStats
	metrics *Metrics

	logger        log.Logger
	trackerLogger log.Logger
}

func NewNode(
	identity NodeIdentity,
	inbox *transport.Inbox,
	sender transport.Sender,
	config *Config,
	opts ...Option,
) *Node {
	options := options{
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	logger := options.logger.WithSubsystem("broadcast").With(
		zap.String("node-id", identity.ID),
	)
	return &Node{
		identity:    identity,
		store:       NewStore(),
		inbox:       inbox,
		sender:      sender,
		config:      config,
		tickPending: atomic.NewBool(false),
		stats: nodeStats{
			values:      atomic.NewInt64(0),
			messageID:   atomic.NewUint64(0),
			retries:     atomic.NewUint64(0),
			deferred:    atomic.NewInt64(0),
			pendingPeer: atomic.NewString(""),
		},
		metrics:       NewMetrics(),
		logger:        logger,
		trackerLogger: logger.WithSubsystem("broadcast.tracker"),
	}
}

func (n *Node) Identity() NodeIdentity {
	return n.identity
}

// Info returns the current node state. Info is safe to call from any
// goroutine.
func (n *Node) Info() NodeInfo {
	return NodeInfo{
		ID:          n.identity.ID,
		Peers:       n.identity.Peers,
		Values:      n.stats.values.Load(),
		MessageID:   n.stats.messageID.Load(),
		Retries:     n.stats.retries.Load(),
		Deferred:    n.stats.deferred.Load(),
		PendingPeer: n.stats.pendingPeer.Load(),
	}
}

func (n *Node) Metrics() *Metrics {
	return n.metrics
}

// Run processes envelopes until the inbox is closed or the context is
// cancelled.
//
// Returns an error if an envelope could not be read or a reply could not be
// sent.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info(
		"starting node",
		zap.Strings("peers", n.identity.Peers),
	)

	for {
		env, acked, err := n.next(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				n.logger.Info("node stopped")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := n.handle(ctx, env, acked); err != nil {
			if errors.Is(err, ErrClosed) {
				n.logger.Info("node stopped")
				return nil
			}
			return fmt.Errorf("%s: %w", env.Body.Type(), err)
		}
	}
}

// next returns the next envelope to process. Deferred envelopes are
// processed before reading from the inbox.
func (n *Node) next(ctx context.Context) (protocol.Envelope, bool, error) {
	if len(n.deferred) > 0 {
		d := n.deferred[0]
		n.deferred[0] = deferredEnvelope{}
		n.deferred = n.deferred[1:]
		n.stats.deferred.Store(int64(len(n.deferred)))
		return d.env, d.acked, nil
	}

	env, err := n.inbox.Receive(ctx, 0)
	return env, false, err
}

func (n *Node) handle(ctx context.Context, env protocol.Envelope, acked bool) error {
	n.metrics.EnvelopesInbound.WithLabelValues(env.Body.Type()).Inc()

	switch body := env.Body.(type) {
	case protocol.Broadcast:
		return n.handleBroadcast(ctx, env.Src, body)
	case protocol.Read:
		return n.send(env.Src, protocol.ReadOK{
			MsgID:     n.nextMessageID(),
			InReplyTo: body.MsgID,
			Messages:  n.store.Snapshot(),
		})
	case protocol.Topology:
		// The fan-out tree always uses the peers from init, so the topology
		// is only acknowledged.
		n.logger.Debug(
			"received topology",
			zap.Any("topology", body.Topology),
		)
		return n.send(env.Src, protocol.TopologyOK{
			MsgID:     n.nextMessageID(),
			InReplyTo: body.MsgID,
		})
	case protocol.Gossip:
		return n.handleGossip(ctx, env.Src, body, acked)
	case protocol.GossipOK:
		// Acknowledgements are only consumed while waiting for them, so
		// this is a duplicate or an ack for a retried attempt.
		n.metrics.AcksDiscarded.Inc()
		n.trackerLogger.Debug(
			"discarded ack",
			zap.String("peer", env.Src),
			zap.Uint64("in-reply-to", body.InReplyTo),
		)
		return nil
	case protocol.Tick:
		return n.handleTick(ctx)
	case protocol.Echo:
		return n.send(env.Src, protocol.EchoOK{
			MsgID:     n.nextMessageID(),
			InReplyTo: body.MsgID,
			Echo:      body.Echo,
		})
	case protocol.Generate:
		msgID := n.nextMessageID()
		return n.send(env.Src, protocol.GenerateOK{
			MsgID:     msgID,
			InReplyTo: body.MsgID,
			ID:        fmt.Sprintf("%s-%d", n.identity.ID, msgID),
		})
	case protocol.Unknown:
		if !body.HasMsgID {
			n.logger.Debug(
				"discarded unsupported message",
				zap.String("src", env.Src),
				zap.String("type", body.Kind),
			)
			return nil
		}
		return n.send(env.Src, protocol.Error{
			InReplyTo: body.MsgID,
			Code:      protocol.ErrorCodeNotSupported,
			Text:      "not supported: " + body.Kind,
		})
	default:
		n.logger.Debug(
			"discarded unexpected message",
			zap.String("src", env.Src),
			zap.String("type", env.Body.Type()),
		)
		return nil
	}
}

func (n *Node) handleBroadcast(ctx context.Context, src string, body protocol.Broadcast) error {
	added := n.record(body.Message)

	if err := n.send(src, protocol.BroadcastOK{
		MsgID:     n.nextMessageID(),
		InReplyTo: body.MsgID,
	}); err != nil {
		return err
	}

	if !added {
		return nil
	}
	return n.fanOut(ctx, []int{body.Message}, n.identity.Peers)
}

func (n *Node) handleGossip(
	ctx context.Context,
	src string,
	body protocol.Gossip,
	acked bool,
) error {
	added := 0
	for _, v := range body.Messages {
		if n.record(v) {
			added++
		}
	}

	n.logger.Debug(
		"received gossip",
		zap.String("src", src),
		zap.Int("values", len(body.Messages)),
		zap.Int("added", added),
		zap.Strings("forward", body.Nodes),
	)

	if !acked {
		if err := n.send(src, protocol.GossipOK{
			MsgID:     n.nextMessageID(),
			InReplyTo: body.MsgID,
		}); err != nil {
			return err
		}
	}

	// Forward even if no values were added, since this node is still
	// responsible for the subtree it was given.
	return n.fanOut(ctx, body.Messages, body.Nodes)
}

func (n *Node) handleTick(ctx context.Context) error {
	n.tickPending.Store(false)

	if n.store.Len() == 0 {
		return nil
	}

	n.metrics.AntiEntropyRounds.Inc()
	n.logger.Debug(
		"anti-entropy round",
		zap.Int("values", n.store.Len()),
	)

	return n.fanOut(ctx, n.store.Snapshot(), n.identity.Peers)
}

// fanOut gossips the values to the first peer of each half of the given
// peers, who each forward to the rest of their half.
func (n *Node) fanOut(ctx context.Context, values []int, peers []string) error {
	if len(values) == 0 {
		return nil
	}

	a, b := Split(peers)
	for _, group := range [][]string{a, b} {
		peer, forward, ok := Select(group)
		if !ok {
			continue
		}

		err := n.gossip(ctx, peer, GossipPayload{
			Values:  values,
			Forward: forward,
		})
		if errors.Is(err, ErrTimedOut) {
			// Anti-entropy will repair the lost gossip once the peer is
			// reachable.
			n.logger.Warn(
				"gave up gossip",
				zap.String("peer", peer),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) record(v int) bool {
	if !n.store.Record(v) {
		return false
	}
	n.stats.values.Store(int64(n.store.Len()))
	n.metrics.Values.Set(float64(n.store.Len()))
	return true
}

func (n *Node) nextMessageID() uint64 {
	n.messageID++
	n.stats.messageID.Store(n.messageID)
	return n.messageID
}

func (n *Node) send(dest string, body protocol.Body) error {
	if err := n.sender.Send(protocol.Envelope{
		Src:  n.identity.ID,
		Dest: dest,
		Body: body,
	}); err != nil {
		return fmt.Errorf("send: %s: %w", dest, err)
	}
	return nil
}
