package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andydunstall/fanout/pkg/protocol"
)

var (
	// ErrClosed is returned when the inbox is closed and every item pushed
	// before closing has been received.
	ErrClosed = errors.New("inbox closed")

	// ErrTimedOut is returned when no item is received within the timeout.
	ErrTimedOut = errors.New("receive timed out")
)

type item struct {
	env protocol.Envelope
	err error
}

// Inbox is the single ordered input stream of a node.
//
// Multiple producers may push envelopes (or errors reading envelopes) to the
// inbox, though there must be a single consumer.
//
// Once closed, the consumer still receives all items pushed before Close,
// then ErrClosed.
type Inbox struct {
	ch chan item

	done      chan struct{}
	closeOnce sync.Once

	// closed is only accessed by the consumer.
	closed bool
}

func NewInbox(size int) *Inbox {
	return &Inbox{
		ch:   make(chan item, size),
		done: make(chan struct{}),
	}
}

// Push adds the envelope to the inbox, blocking if the inbox is full.
//
// Returns ErrClosed if the inbox has been closed.
func (i *Inbox) Push(ctx context.Context, env protocol.Envelope) error {
	return i.push(ctx, item{env: env})
}

// PushError adds an error to the inbox, which will be returned to the
// consumer in order with the other items.
func (i *Inbox) PushError(ctx context.Context, err error) error {
	return i.push(ctx, item{err: err})
}

// Close marks the inbox as closed. Producers must not push after closing,
// though items already pushed will still be received.
func (i *Inbox) Close() {
	i.closeOnce.Do(func() {
		close(i.done)
	})
}

// Done returns a channel that is closed when the inbox is closed.
func (i *Inbox) Done() <-chan struct{} {
	return i.done
}

// Receive returns the next envelope in the inbox.
//
// If timeout is positive and no item is received within the timeout, returns
// ErrTimedOut, otherwise blocks until an item is available. If the inbox is
// closed and there are no remaining items returns ErrClosed.
func (i *Inbox) Receive(ctx context.Context, timeout time.Duration) (protocol.Envelope, error) {
	if i.closed {
		return protocol.Envelope{}, ErrClosed
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case it := <-i.ch:
		return it.env, it.err
	case <-i.done:
		// Items pushed before closing are already buffered, so drain them
		// before reporting closed.
		select {
		case it := <-i.ch:
			return it.env, it.err
		default:
			i.closed = true
			return protocol.Envelope{}, ErrClosed
		}
	case <-timeoutCh:
		return protocol.Envelope{}, ErrTimedOut
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (i *Inbox) push(ctx context.Context, it item) error {
	// Check closed first as select is random when multiple cases are ready.
	select {
	case <-i.done:
		return ErrClosed
	default:
	}

	select {
	case i.ch <- it:
		return nil
	case <-i.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
