package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
)

const (
	endpointInboxSize = 1024
)

type networkOptions struct {
	dropRate float64
	maxDelay time.Duration
	seed     int64
	logger   log.Logger
}

type NetworkOption interface {
	apply(*networkOptions)
}

type dropRateOption float64

func (o dropRateOption) apply(opts *networkOptions) {
	opts.dropRate = float64(o)
}

// WithDropRate configures the probability (0 to 1) that a message between
// nodes is dropped. Messages to and from clients are never dropped.
func WithDropRate(rate float64) NetworkOption {
	return dropRateOption(rate)
}

type maxDelayOption time.Duration

func (o maxDelayOption) apply(opts *networkOptions) {
	opts.maxDelay = time.Duration(o)
}

// WithMaxDelay configures the maximum random delay added to each message,
// which also causes messages to be reordered.
func WithMaxDelay(delay time.Duration) NetworkOption {
	return maxDelayOption(delay)
}

type seedOption int64

func (o seedOption) apply(opts *networkOptions) {
	opts.seed = int64(o)
}

// WithSeed configures the seed used to select dropped messages and delays.
func WithSeed(seed int64) NetworkOption {
	return seedOption(seed)
}

type networkLoggerOption struct {
	Logger log.Logger
}

func (o networkLoggerOption) apply(opts *networkOptions) {
	opts.logger = o.Logger
}

// WithNetworkLogger configures the logger. Defaults to no output.
func WithNetworkLogger(logger log.Logger) NetworkOption {
	return networkLoggerOption{Logger: logger}
}

// NetworkStats contains counters for the messages sent over the network.
type NetworkStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Network is an in-memory network connecting a set of endpoints.
//
// Messages are encoded and decoded as they would be on the wire, and messages
// between nodes may be dropped, delayed and reordered.
type Network struct {
	endpoints map[string]*Endpoint

	// rand is protected by mu as rand.Rand isn't safe for concurrent use.
	rand *rand.Rand

	mu sync.Mutex

	dropRate float64
	maxDelay time.Duration

	sent    *atomic.Uint64
	dropped *atomic.Uint64

	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	logger log.Logger
}

func NewNetwork(opts ...NetworkOption) *Network {
	options := networkOptions{
		seed:   time.Now().UnixNano(),
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Network{
		endpoints: make(map[string]*Endpoint),
		rand:      rand.New(rand.NewSource(options.seed)),
		dropRate:  options.dropRate,
		maxDelay:  options.maxDelay,
		sent:      atomic.NewUint64(0),
		dropped:   atomic.NewUint64(0),
		ctx:       ctx,
		cancel:    cancel,
		logger:    options.logger.WithSubsystem("transport.network"),
	}
}

// Endpoint returns the endpoint with the given ID, creating it if it doesn't
// exist.
func (n *Network) Endpoint(id string) *Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()

	if e, ok := n.endpoints[id]; ok {
		return e
	}

	e := &Endpoint{
		id:      id,
		network: n,
		inbox:   NewInbox(endpointInboxSize),
	}
	n.endpoints[id] = e
	return e
}

func (n *Network) Stats() NetworkStats {
	return NetworkStats{
		Sent:    n.sent.Load(),
		Dropped: n.dropped.Load(),
	}
}

// Close closes the inbox of every endpoint and discards messages in flight.
func (n *Network) Close() {
	n.mu.Lock()
	n.cancel()
	for _, e := range n.endpoints {
		e.inbox.Close()
	}
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *Network) send(env protocol.Envelope) error {
	b, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	n.mu.Lock()
	if n.ctx.Err() != nil {
		n.mu.Unlock()
		// Once closed, the network behaves as though every link is down.
		return nil
	}
	dest, ok := n.endpoints[env.Dest]
	drop := isPeerTraffic(env.Body) && n.rand.Float64() < n.dropRate
	var delay time.Duration
	if n.maxDelay > 0 {
		delay = time.Duration(n.rand.Int63n(int64(n.maxDelay)))
	}
	if ok && !drop {
		n.wg.Add(1)
	}
	n.mu.Unlock()

	n.sent.Inc()

	if !ok || drop {
		n.dropped.Inc()
		n.logger.Debug(
			"dropped envelope",
			zap.String("src", env.Src),
			zap.String("dest", env.Dest),
			zap.String("type", env.Body.Type()),
		)
		return nil
	}

	go func() {
		defer n.wg.Done()

		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-n.ctx.Done():
				return
			}
		}

		received, err := protocol.Decode(b)
		if err != nil {
			_ = dest.inbox.PushError(n.ctx, fmt.Errorf("decode: %w", err))
			return
		}
		_ = dest.inbox.Push(n.ctx, received)
	}()

	return nil
}

// Endpoint is a single addressable member of the network, either a node or
// a client.
type Endpoint struct {
	id      string
	network *Network
	inbox   *Inbox
}

func (e *Endpoint) ID() string {
	return e.id
}

// Inbox returns the inbox receiving messages sent to this endpoint.
func (e *Endpoint) Inbox() *Inbox {
	return e.inbox
}

func (e *Endpoint) Send(env protocol.Envelope) error {
	return e.network.send(env)
}

var _ Sender = &Endpoint{}

// isPeerTraffic returns whether the body is sent between nodes rather than
// between a node and a client.
func isPeerTraffic(body protocol.Body) bool {
	switch body.(type) {
	case protocol.Gossip, protocol.GossipOK:
		return true
	default:
		return false
	}
}
