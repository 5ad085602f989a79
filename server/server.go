package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/transport"
	"github.com/andydunstall/fanout/server/admin"
	"github.com/andydunstall/fanout/server/broadcast"
	"github.com/andydunstall/fanout/server/config"
)

// inboxSize is the number of envelopes buffered between the stream reader
// and the node.
const inboxSize = 1024

// Server runs a broadcast node that reads envelopes from the given reader and
// writes envelopes to the given writer, one JSON document per line.
type Server struct {
	conf *config.Config

	inbox  *transport.Inbox
	reader *transport.StreamReader
	sender *transport.StreamSender

	registry *prometheus.Registry

	logger log.Logger
}

func NewServer(
	conf *config.Config,
	r io.Reader,
	w io.Writer,
	logger log.Logger,
) *Server {
	return &Server{
		conf:     conf,
		inbox:    transport.NewInbox(inboxSize),
		reader:   transport.NewStreamReader(r, logger),
		sender:   transport.NewStreamSender(w, logger),
		registry: prometheus.NewRegistry(),
		logger:   logger.WithSubsystem("server"),
	}
}

// Run waits for the init handshake then runs the node until the input stream
// closes or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// The reader may block reading the input indefinitely, so it isn't part
	// of the run group. Once the input closes the inbox is closed which
	// stops the node.
	go func() {
		if err := s.reader.Run(ctx, s.inbox); err != nil {
			s.logger.Warn("stream reader", zap.Error(err))
		}
	}()

	identity, err := broadcast.Handshake(ctx, s.inbox, s.sender)
	if err != nil {
		if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
			s.logger.Info("input closed before init")
			return nil
		}
		return fmt.Errorf("handshake: %w", err)
	}

	s.logger.Info(
		"initialized node",
		zap.String("node-id", identity.ID),
		zap.Strings("peers", identity.Peers),
	)

	node := broadcast.NewNode(
		identity,
		s.inbox,
		s.sender,
		&s.conf.Gossip,
		broadcast.WithLogger(s.logger),
	)
	node.Metrics().Register(s.registry)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var group rungroup.Group

	// Node.
	group.Add(func() error {
		if err := node.Run(runCtx); err != nil {
			return fmt.Errorf("node: %w", err)
		}
		return nil
	}, func(error) {
		runCancel()
	})

	// Anti-entropy ticker.
	if !s.conf.Gossip.DisableAntiEntropy {
		ticker := broadcast.NewTicker(node, s.conf.Gossip.TickInterval, s.logger)
		tickerCtx, tickerCancel := context.WithCancel(runCtx)
		group.Add(func() error {
			if err := ticker.Run(tickerCtx); err != nil {
				return fmt.Errorf("ticker: %w", err)
			}
			// The ticker returns once the inbox closes, though the node must
			// still drain the queued envelopes before the group stops.
			<-tickerCtx.Done()
			return nil
		}, func(error) {
			tickerCancel()
		})
	}

	// Admin server.
	if s.conf.Admin.BindAddr != "" {
		adminLn, err := net.Listen("tcp", s.conf.Admin.BindAddr)
		if err != nil {
			return fmt.Errorf("admin listen: %s: %w", s.conf.Admin.BindAddr, err)
		}

		adminServer := admin.NewServer(s.registry, s.logger)
		adminServer.AddStatus("/node", broadcast.NewStatus(node))

		group.Add(func() error {
			if err := adminServer.Serve(adminLn); err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				s.conf.GracePeriod,
			)
			defer cancel()

			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("failed to gracefully shutdown admin server", zap.Error(err))
			}
		})
	}

	if err := group.Run(); err != nil {
		return err
	}

	s.logger.Info("shutdown complete")
	return nil
}
