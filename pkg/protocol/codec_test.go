package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToMap(t *testing.T, env Envelope) map[string]interface{} {
	b, err := Encode(env)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestDecode(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"c0","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1","n2","n3"]}}`))
		require.NoError(t, err)

		assert.Equal(t, Envelope{
			Src:  "c0",
			Dest: "n1",
			Body: Init{
				MsgID:   1,
				NodeID:  "n1",
				NodeIDs: []string{"n1", "n2", "n3"},
			},
		}, env)
	})

	t.Run("broadcast zero value", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":4,"message":0}}`))
		require.NoError(t, err)

		assert.Equal(t, Broadcast{MsgID: 4, Message: 0}, env.Body)
	})

	t.Run("gossip", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"n1","dest":"n2","body":{"type":"gossip","msg_id":7,"messages":[10,20],"nodes":["n3"]}}`))
		require.NoError(t, err)

		assert.Equal(t, Gossip{
			MsgID:    7,
			Messages: []int{10, 20},
			Nodes:    []string{"n3"},
		}, env.Body)
	})

	t.Run("gossip ok", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"n2","dest":"n1","body":{"type":"gossip_ok","msg_id":3,"in_reply_to":7}}`))
		require.NoError(t, err)

		inReplyTo, ok := env.InReplyTo()
		assert.True(t, ok)
		assert.Equal(t, uint64(7), inReplyTo)
		assert.Equal(t, GossipOK{MsgID: 3, InReplyTo: 7}, env.Body)
	})

	t.Run("topology", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"topology","msg_id":2,"topology":{"n1":["n2"],"n2":["n1"]}}}`))
		require.NoError(t, err)

		assert.Equal(t, Topology{
			MsgID: 2,
			Topology: map[string][]string{
				"n1": {"n2"},
				"n2": {"n1"},
			},
		}, env.Body)
	})

	t.Run("unknown type", func(t *testing.T) {
		env, err := Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"txn","msg_id":9}}`))
		require.NoError(t, err)

		assert.Equal(t, Unknown{Kind: "txn", MsgID: 9, HasMsgID: true}, env.Body)
	})

	t.Run("ignores unknown fields", func(t *testing.T) {
		env, err := Decode([]byte(`{"id":3,"src":"c1","dest":"n1","body":{"type":"read","msg_id":1,"foo":"bar"}}`))
		require.NoError(t, err)

		assert.Equal(t, Read{MsgID: 1}, env.Body)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, line := range []string{
			`not json`,
			`{"src":"c1","dest":"n1","body":{"msg_id":1}}`,
			`{"dest":"n1","body":{"type":"read","msg_id":1}}`,
			`{"src":"c1","body":{"type":"read","msg_id":1}}`,
			`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":1}}`,
			`{"src":"c1","dest":"n1","body":{"type":"read"}}`,
			`{"src":"n2","dest":"n1","body":{"type":"gossip_ok","msg_id":1}}`,
			`{"src":"c0","dest":"n1","body":{"type":"init","msg_id":1}}`,
			`{"src":"n1","dest":"n1","body":{"type":"tick"}}`,
		} {
			_, err := Decode([]byte(line))
			assert.Error(t, err, line)
		}
	})
}

func TestEncode(t *testing.T) {
	t.Run("read ok empty", func(t *testing.T) {
		m := encodeToMap(t, Envelope{
			Src:  "n1",
			Dest: "c1",
			Body: ReadOK{MsgID: 2, InReplyTo: 5},
		})

		assert.Equal(t, map[string]interface{}{
			"src":  "n1",
			"dest": "c1",
			"body": map[string]interface{}{
				"type":        "read_ok",
				"msg_id":      float64(2),
				"in_reply_to": float64(5),
				"messages":    []interface{}{},
			},
		}, m)
	})

	t.Run("gossip", func(t *testing.T) {
		m := encodeToMap(t, Envelope{
			Src:  "n1",
			Dest: "n2",
			Body: Gossip{MsgID: 3, Messages: []int{0, 20}},
		})

		assert.Equal(t, map[string]interface{}{
			"type":     "gossip",
			"msg_id":   float64(3),
			"messages": []interface{}{float64(0), float64(20)},
			"nodes":    []interface{}{},
		}, m["body"])
	})

	t.Run("error", func(t *testing.T) {
		m := encodeToMap(t, Envelope{
			Src:  "n1",
			Dest: "c1",
			Body: Error{
				InReplyTo: 4,
				Code:      ErrorCodeNotSupported,
				Text:      "not supported: txn",
			},
		})

		assert.Equal(t, map[string]interface{}{
			"type":        "error",
			"in_reply_to": float64(4),
			"code":        float64(10),
			"text":        "not supported: txn",
		}, m["body"])
	})

	t.Run("tick", func(t *testing.T) {
		_, err := Encode(Envelope{Src: "n1", Dest: "n1", Body: Tick{}})
		assert.ErrorIs(t, err, ErrNotEncodable)
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := Encode(Envelope{Src: "n1", Dest: "n1"})
		assert.Error(t, err)
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	bodies := []Body{
		InitOK{MsgID: 1, InReplyTo: 1},
		Broadcast{MsgID: 2, Message: 42},
		ReadOK{MsgID: 3, InReplyTo: 2, Messages: []int{1, 2, 3}},
		Gossip{MsgID: 4, Messages: []int{5}, Nodes: []string{"n3", "n4"}},
		EchoOK{MsgID: 5, InReplyTo: 1, Echo: "hello"},
		GenerateOK{MsgID: 6, InReplyTo: 3, ID: "n1-6"},
	}
	for _, body := range bodies {
		t.Run(body.Type(), func(t *testing.T) {
			sent := Envelope{Src: "n1", Dest: "n2", Body: body}

			b, err := Encode(sent)
			require.NoError(t, err)

			received, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, sent, received)
		})
	}
}
