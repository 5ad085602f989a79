package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/pkg/protocol"
)

const (
	// maxLineSize is the maximum size of a single encoded envelope.
	maxLineSize = 16 * 1024 * 1024
)

// Sender sends envelopes to other nodes or clients.
type Sender interface {
	// Send writes the envelope to the transport. Delivery isn't guaranteed,
	// though a returned error means the transport itself has failed.
	Send(env protocol.Envelope) error
}

// StreamReader reads line delimited JSON envelopes from a stream (such as
// stdin) and pushes them to an inbox.
type StreamReader struct {
	r io.Reader

	logger log.Logger
}

func NewStreamReader(r io.Reader, logger log.Logger) *StreamReader {
	return &StreamReader{
		r:      r,
		logger: logger.WithSubsystem("transport"),
	}
}

// Run reads envelopes until the stream is exhausted, pushing each to the
// inbox in order. Envelopes that fail to decode are pushed as errors.
//
// The inbox is closed once the stream is exhausted or fails. Returns an error
// if reading the stream failed.
func (r *StreamReader) Run(ctx context.Context, inbox *Inbox) error {
	defer inbox.Close()

	scanner := bufio.NewScanner(r.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		env, err := protocol.Decode(line)
		if err != nil {
			r.logger.Warn(
				"failed to decode envelope",
				zap.ByteString("line", line),
				zap.Error(err),
			)
			err = inbox.PushError(ctx, fmt.Errorf("decode: %w", err))
		} else {
			r.logger.Debug(
				"received envelope",
				zap.String("src", env.Src),
				zap.String("type", env.Body.Type()),
			)
			err = inbox.Push(ctx, env)
		}
		if err != nil {
			// The consumer has stopped.
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		err = fmt.Errorf("read: %w", err)
		_ = inbox.PushError(ctx, err)
		return err
	}

	r.logger.Info("stream exhausted")

	return nil
}

// StreamSender writes envelopes to a stream (such as stdout) as line
// delimited JSON.
//
// StreamSender is safe for concurrent use.
type StreamSender struct {
	w *bufio.Writer

	mu sync.Mutex

	logger log.Logger
}

func NewStreamSender(w io.Writer, logger log.Logger) *StreamSender {
	return &StreamSender{
		w:      bufio.NewWriter(w),
		logger: logger.WithSubsystem("transport"),
	}
}

func (s *StreamSender) Send(env protocol.Envelope) error {
	b, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	// Flush every envelope as the receiver processes messages line by line.
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	s.logger.Debug(
		"sent envelope",
		zap.String("dest", env.Dest),
		zap.String("type", env.Body.Type()),
	)

	return nil
}

var _ Sender = &StreamSender{}
