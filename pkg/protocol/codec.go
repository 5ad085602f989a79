package protocol

import (
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"
)

var (
	// ErrNotEncodable is returned when encoding a body that is never sent
	// over the transport, such as Tick.
	ErrNotEncodable = errors.New("body not encodable")
)

// wireEnvelope is the JSON representation of an envelope.
type wireEnvelope struct {
	Src  string   `json:"src"`
	Dest string   `json:"dest"`
	Body wireBody `json:"body"`
}

// wireBody contains the union of all body fields. Optional fields are
// pointers so zero values (such as a broadcast of value 0 or an empty read)
// are still encoded.
type wireBody struct {
	Type      string              `json:"type"`
	MsgID     *uint64             `json:"msg_id,omitempty"`
	InReplyTo *uint64             `json:"in_reply_to,omitempty"`
	Message   *int                `json:"message,omitempty"`
	Messages  *[]int              `json:"messages,omitempty"`
	Nodes     *[]string           `json:"nodes,omitempty"`
	Topology  map[string][]string `json:"topology,omitempty"`
	NodeID    string              `json:"node_id,omitempty"`
	NodeIDs   []string            `json:"node_ids,omitempty"`
	Echo      *string             `json:"echo,omitempty"`
	ID        string              `json:"id,omitempty"`
	Code      *int                `json:"code,omitempty"`
	Text      string              `json:"text,omitempty"`
}

var jsonHandle codec.JsonHandle

// Encode encodes the envelope as a single line of JSON, excluding the
// trailing newline.
func Encode(env Envelope) ([]byte, error) {
	body, err := encodeBody(env.Body)
	if err != nil {
		return nil, err
	}

	var b []byte
	enc := codec.NewEncoderBytes(&b, &jsonHandle)
	if err := enc.Encode(&wireEnvelope{
		Src:  env.Src,
		Dest: env.Dest,
		Body: body,
	}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// Decode decodes a JSON envelope.
//
// Returns an error if the JSON is invalid or a known message type is
// missing required fields. Unsupported message types decode to Unknown.
func Decode(b []byte) (Envelope, error) {
	var w wireEnvelope
	dec := codec.NewDecoderBytes(b, &jsonHandle)
	if err := dec.Decode(&w); err != nil {
		return Envelope{}, fmt.Errorf("decode: %w", err)
	}

	if w.Src == "" {
		return Envelope{}, fmt.Errorf("missing src")
	}
	if w.Dest == "" {
		return Envelope{}, fmt.Errorf("missing dest")
	}

	body, err := decodeBody(&w.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", w.Body.Type, err)
	}
	return Envelope{
		Src:  w.Src,
		Dest: w.Dest,
		Body: body,
	}, nil
}

func encodeBody(body Body) (wireBody, error) {
	switch b := body.(type) {
	case Init:
		return wireBody{
			Type:    b.Type(),
			MsgID:   &b.MsgID,
			NodeID:  b.NodeID,
			NodeIDs: b.NodeIDs,
		}, nil
	case InitOK:
		return replyBody(b.Type(), b.MsgID, b.InReplyTo), nil
	case Broadcast:
		return wireBody{
			Type:    b.Type(),
			MsgID:   &b.MsgID,
			Message: &b.Message,
		}, nil
	case BroadcastOK:
		return replyBody(b.Type(), b.MsgID, b.InReplyTo), nil
	case Read:
		return wireBody{
			Type:  b.Type(),
			MsgID: &b.MsgID,
		}, nil
	case ReadOK:
		w := replyBody(b.Type(), b.MsgID, b.InReplyTo)
		w.Messages = intsPtr(b.Messages)
		return w, nil
	case Topology:
		return wireBody{
			Type:     b.Type(),
			MsgID:    &b.MsgID,
			Topology: b.Topology,
		}, nil
	case TopologyOK:
		return replyBody(b.Type(), b.MsgID, b.InReplyTo), nil
	case Gossip:
		nodes := b.Nodes
		if nodes == nil {
			nodes = []string{}
		}
		return wireBody{
			Type:     b.Type(),
			MsgID:    &b.MsgID,
			Messages: intsPtr(b.Messages),
			Nodes:    &nodes,
		}, nil
	case GossipOK:
		return replyBody(b.Type(), b.MsgID, b.InReplyTo), nil
	case Echo:
		return wireBody{
			Type:  b.Type(),
			MsgID: &b.MsgID,
			Echo:  &b.Echo,
		}, nil
	case EchoOK:
		w := replyBody(b.Type(), b.MsgID, b.InReplyTo)
		w.Echo = &b.Echo
		return w, nil
	case Generate:
		return wireBody{
			Type:  b.Type(),
			MsgID: &b.MsgID,
		}, nil
	case GenerateOK:
		w := replyBody(b.Type(), b.MsgID, b.InReplyTo)
		w.ID = b.ID
		return w, nil
	case Error:
		return wireBody{
			Type:      b.Type(),
			InReplyTo: &b.InReplyTo,
			Code:      &b.Code,
			Text:      b.Text,
		}, nil
	case Unknown:
		w := wireBody{
			Type: b.Kind,
		}
		if b.HasMsgID {
			w.MsgID = &b.MsgID
		}
		return w, nil
	case Tick:
		return wireBody{}, fmt.Errorf("%s: %w", b.Type(), ErrNotEncodable)
	case nil:
		return wireBody{}, fmt.Errorf("missing body")
	default:
		return wireBody{}, fmt.Errorf("%s: %w", body.Type(), ErrNotEncodable)
	}
}

func decodeBody(w *wireBody) (Body, error) {
	switch w.Type {
	case "":
		return nil, fmt.Errorf("missing type")
	case Init{}.Type():
		if w.NodeID == "" {
			return nil, fmt.Errorf("missing node_id")
		}
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		return Init{
			MsgID:   msgID,
			NodeID:  w.NodeID,
			NodeIDs: w.NodeIDs,
		}, nil
	case InitOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		return InitOK{MsgID: optional(w.MsgID), InReplyTo: inReplyTo}, nil
	case Broadcast{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		if w.Message == nil {
			return nil, fmt.Errorf("missing message")
		}
		return Broadcast{MsgID: msgID, Message: *w.Message}, nil
	case BroadcastOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		return BroadcastOK{MsgID: optional(w.MsgID), InReplyTo: inReplyTo}, nil
	case Read{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		return Read{MsgID: msgID}, nil
	case ReadOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		var messages []int
		if w.Messages != nil {
			messages = *w.Messages
		}
		return ReadOK{
			MsgID:     optional(w.MsgID),
			InReplyTo: inReplyTo,
			Messages:  messages,
		}, nil
	case Topology{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		return Topology{MsgID: msgID, Topology: w.Topology}, nil
	case TopologyOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		return TopologyOK{MsgID: optional(w.MsgID), InReplyTo: inReplyTo}, nil
	case Gossip{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		gossip := Gossip{MsgID: msgID}
		if w.Messages != nil {
			gossip.Messages = *w.Messages
		}
		if w.Nodes != nil {
			gossip.Nodes = *w.Nodes
		}
		return gossip, nil
	case GossipOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		return GossipOK{MsgID: optional(w.MsgID), InReplyTo: inReplyTo}, nil
	case Echo{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		echo := Echo{MsgID: msgID}
		if w.Echo != nil {
			echo.Echo = *w.Echo
		}
		return echo, nil
	case EchoOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		echo := EchoOK{MsgID: optional(w.MsgID), InReplyTo: inReplyTo}
		if w.Echo != nil {
			echo.Echo = *w.Echo
		}
		return echo, nil
	case Generate{}.Type():
		msgID, err := requireMsgID(w)
		if err != nil {
			return nil, err
		}
		return Generate{MsgID: msgID}, nil
	case GenerateOK{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		return GenerateOK{
			MsgID:     optional(w.MsgID),
			InReplyTo: inReplyTo,
			ID:        w.ID,
		}, nil
	case Error{}.Type():
		inReplyTo, err := requireInReplyTo(w)
		if err != nil {
			return nil, err
		}
		e := Error{InReplyTo: inReplyTo, Text: w.Text}
		if w.Code != nil {
			e.Code = *w.Code
		}
		return e, nil
	case Tick{}.Type():
		// Ticks are only created locally.
		return nil, fmt.Errorf("unexpected type")
	default:
		return Unknown{
			Kind:     w.Type,
			MsgID:    optional(w.MsgID),
			HasMsgID: w.MsgID != nil,
		}, nil
	}
}

func replyBody(typ string, msgID uint64, inReplyTo uint64) wireBody {
	return wireBody{
		Type:      typ,
		MsgID:     &msgID,
		InReplyTo: &inReplyTo,
	}
}

func requireMsgID(w *wireBody) (uint64, error) {
	if w.MsgID == nil {
		return 0, fmt.Errorf("missing msg_id")
	}
	return *w.MsgID, nil
}

func requireInReplyTo(w *wireBody) (uint64, error) {
	if w.InReplyTo == nil {
		return 0, fmt.Errorf("missing in_reply_to")
	}
	return *w.InReplyTo, nil
}

func optional(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func intsPtr(v []int) *[]int {
	if v == nil {
		v = []int{}
	}
	return &v
}
