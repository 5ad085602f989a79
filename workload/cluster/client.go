package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

// Client sends requests to nodes in the cluster and correlates the replies
// by 'in_reply_to'.
type Client struct {
	endpoint *transport.Endpoint

	messageID *atomic.Uint64

	// pending contains the reply channels of outstanding requests, keyed by
	// message ID.
	pending map[uint64]chan protocol.Envelope

	mu sync.Mutex

	logger log.Logger
}

func NewClient(endpoint *transport.Endpoint, logger log.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		messageID: atomic.NewUint64(0),
		pending:   make(map[uint64]chan protocol.Envelope),
		logger: logger.WithSubsystem("workload.client").With(
			zap.String("client-id", endpoint.ID()),
		),
	}
}

func (c *Client) ID() string {
	return c.endpoint.ID()
}

// Run dispatches replies to pending requests until the endpoint inbox is
// closed or the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		env, err := c.endpoint.Inbox().Receive(ctx, 0)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		inReplyTo, ok := env.InReplyTo()
		if !ok {
			c.logger.Warn(
				"unexpected request",
				zap.String("src", env.Src),
				zap.String("type", env.Body.Type()),
			)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[inReplyTo]
		delete(c.pending, inReplyTo)
		c.mu.Unlock()

		if !ok {
			c.logger.Warn(
				"unknown reply",
				zap.String("src", env.Src),
				zap.Uint64("in-reply-to", inReplyTo),
			)
			continue
		}
		ch <- env
	}
}

// Request sends the body returned by newBody for a new message ID to the
// destination node and waits for the reply.
func (c *Client) Request(
	ctx context.Context,
	dest string,
	newBody func(msgID uint64) protocol.Body,
) (protocol.Envelope, error) {
	msgID := c.messageID.Inc()
	ch := make(chan protocol.Envelope, 1)

	c.mu.Lock()
	c.pending[msgID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msgID)
		c.mu.Unlock()
	}()

	if err := c.endpoint.Send(protocol.Envelope{
		Src:  c.endpoint.ID(),
		Dest: dest,
		Body: newBody(msgID),
	}); err != nil {
		return protocol.Envelope{}, fmt.Errorf("send: %w", err)
	}

	select {
	case env := <-ch:
		if errBody, ok := env.Body.(protocol.Error); ok {
			return protocol.Envelope{}, fmt.Errorf(
				"%s: error %d: %s", dest, errBody.Code, errBody.Text,
			)
		}
		return env, nil
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}
