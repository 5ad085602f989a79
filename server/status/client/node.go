package client

import (
	"encoding/json"
	"fmt"

	"github.com/andydunstall/fanout/server/broadcast"
)

type Node struct {
	client *Client
}

func NewNode(client *Client) *Node {
	return &Node{
		client: client,
	}
}

func (n *Node) Info() (*broadcast.NodeInfo, error) {
	r, err := n.client.Request("/status/node")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var info broadcast.NodeInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}
