package protocol

// Body is the typed body of an envelope. Each message type has its own body
// struct.
type Body interface {
	// Type returns the wire 'type' of the body.
	Type() string
}

// Reply is implemented by bodies that answer a request.
type Reply interface {
	Body
	// ReplyTo returns the 'msg_id' of the request being answered.
	ReplyTo() uint64
}

// Envelope is a single routed message with a source, destination and typed
// body.
type Envelope struct {
	Src  string
	Dest string
	Body Body
}

// InReplyTo returns the request ID the envelope answers, or false if the body
// isn't a reply.
func (e Envelope) InReplyTo() (uint64, bool) {
	reply, ok := e.Body.(Reply)
	if !ok {
		return 0, false
	}
	return reply.ReplyTo(), true
}

// Init is the first message sent to each node, assigning the node its ID and
// the IDs of all nodes in the cluster (including itself).
type Init struct {
	MsgID   uint64
	NodeID  string
	NodeIDs []string
}

func (Init) Type() string { return "init" }

type InitOK struct {
	MsgID     uint64
	InReplyTo uint64
}

func (InitOK) Type() string      { return "init_ok" }
func (b InitOK) ReplyTo() uint64 { return b.InReplyTo }

// Broadcast requests the node record the given value and disseminate it to
// the rest of the cluster.
type Broadcast struct {
	MsgID   uint64
	Message int
}

func (Broadcast) Type() string { return "broadcast" }

type BroadcastOK struct {
	MsgID     uint64
	InReplyTo uint64
}

func (BroadcastOK) Type() string      { return "broadcast_ok" }
func (b BroadcastOK) ReplyTo() uint64 { return b.InReplyTo }

// Read requests all values the node has recorded.
type Read struct {
	MsgID uint64
}

func (Read) Type() string { return "read" }

type ReadOK struct {
	MsgID     uint64
	InReplyTo uint64
	Messages  []int
}

func (ReadOK) Type() string      { return "read_ok" }
func (b ReadOK) ReplyTo() uint64 { return b.InReplyTo }

// Topology informs the node of its neighbours.
type Topology struct {
	MsgID    uint64
	Topology map[string][]string
}

func (Topology) Type() string { return "topology" }

type TopologyOK struct {
	MsgID     uint64
	InReplyTo uint64
}

func (TopologyOK) Type() string      { return "topology_ok" }
func (b TopologyOK) ReplyTo() uint64 { return b.InReplyTo }

// Gossip carries a batch of values from one node to a peer, along with the
// peers the receiver must forward the values on to.
type Gossip struct {
	MsgID    uint64
	Messages []int
	Nodes    []string
}

func (Gossip) Type() string { return "gossip" }

type GossipOK struct {
	MsgID     uint64
	InReplyTo uint64
}

func (GossipOK) Type() string      { return "gossip_ok" }
func (b GossipOK) ReplyTo() uint64 { return b.InReplyTo }

type Echo struct {
	MsgID uint64
	Echo  string
}

func (Echo) Type() string { return "echo" }

type EchoOK struct {
	MsgID     uint64
	InReplyTo uint64
	Echo      string
}

func (EchoOK) Type() string      { return "echo_ok" }
func (b EchoOK) ReplyTo() uint64 { return b.InReplyTo }

// Generate requests a cluster-wide unique ID.
type Generate struct {
	MsgID uint64
}

func (Generate) Type() string { return "generate" }

type GenerateOK struct {
	MsgID     uint64
	InReplyTo uint64
	ID        string
}

func (GenerateOK) Type() string      { return "generate_ok" }
func (b GenerateOK) ReplyTo() uint64 { return b.InReplyTo }

// Error codes, as defined by Maelstrom.
const (
	ErrorCodeTimeout                = 0
	ErrorCodeNotSupported           = 10
	ErrorCodeTemporarilyUnavailable = 11
	ErrorCodeMalformedRequest       = 12
	ErrorCodeCrash                  = 13
)

// Error replies to a request that could not be served.
type Error struct {
	InReplyTo uint64
	Code      int
	Text      string
}

func (Error) Type() string      { return "error" }
func (b Error) ReplyTo() uint64 { return b.InReplyTo }

// Unknown is a body whose type isn't supported by this node.
type Unknown struct {
	Kind     string
	MsgID    uint64
	HasMsgID bool
}

func (b Unknown) Type() string { return b.Kind }

// Tick is a synthetic body used to schedule work on the node's own input
// stream. It is never sent over the transport.
type Tick struct{}

func (Tick) Type() string { return "tick" }
