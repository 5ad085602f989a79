package broadcast

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
	"github.com/andydunstall/fanout/pkg/transport"
)

// Ticker periodically pushes a tick into the node inbox to trigger an
// anti-entropy round.
//
// At most one tick is queued at a time. If the node is still busy with the
// previous tick, further ticks are skipped.
type Ticker struct {
	nodeID   string
	inbox    *transport.Inbox
	interval time.Duration

	pending *atomic.Bool

	logger log.Logger
}

func NewTicker(node *Node, interval time.Duration, logger log.Logger) *Ticker {
	return &Ticker{
		nodeID:   node.identity.ID,
		inbox:    node.inbox,
		interval: interval,
		pending:  node.tickPending,
		logger:   logger.WithSubsystem("broadcast.ticker"),
	}
}

// Run pushes ticks until the inbox is closed or the context is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	t.logger.Info(
		"starting ticker",
		zap.Duration("interval", t.interval),
	)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !t.pending.CompareAndSwap(false, true) {
				continue
			}
			if err := t.inbox.Push(ctx, protocol.Envelope{
				Src:  t.nodeID,
				Dest: t.nodeID,
				Body: protocol.Tick{},
			}); err != nil {
				t.logger.Info("ticker stopped", zap.Error(err))
				return nil
			}
		case <-t.inbox.Done():
			t.logger.Info("ticker stopped; inbox closed")
			return nil
		case <-ctx.Done():
			t.logger.Info("ticker stopped")
			return nil
		}
	}
}
