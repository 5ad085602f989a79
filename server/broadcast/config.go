package broadcast

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	// AckTimeout is the time to wait for a gossip acknowledgement before
	// retrying.
	AckTimeout time.Duration `json:"ack_timeout" yaml:"ack_timeout"`

	// MaxAckTimeout is the maximum time to wait for an acknowledgement. If
	// greater than AckTimeout, the timeout doubles on each retry up to
	// MaxAckTimeout, otherwise the timeout is fixed.
	MaxAckTimeout time.Duration `json:"max_ack_timeout" yaml:"max_ack_timeout"`

	// MaxAttempts is the maximum number of attempts to deliver gossip to a
	// peer, or zero to retry until acknowledged.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// TickInterval is the interval between anti-entropy rounds.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// DisableAntiEntropy disables periodically gossiping all known values.
	DisableAntiEntropy bool `json:"disable_anti_entropy" yaml:"disable_anti_entropy"`
}

func Default() *Config {
	return &Config{
		AckTimeout:    100 * time.Millisecond,
		MaxAckTimeout: 100 * time.Millisecond,
		TickInterval:  250 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if c.AckTimeout <= 0 {
		return fmt.Errorf("missing ack timeout")
	}
	if c.MaxAckTimeout != 0 && c.MaxAckTimeout < c.AckTimeout {
		return fmt.Errorf("max ack timeout must be at least ack timeout")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative")
	}
	if !c.DisableAntiEntropy && c.TickInterval <= 0 {
		return fmt.Errorf("missing tick interval")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.DurationVar(
		&c.AckTimeout,
		"gossip.ack-timeout",
		c.AckTimeout,
		`
The time to wait for a peer to acknowledge gossip before resending it.

Each resend uses a new message ID, so late acknowledgements for earlier
attempts are ignored.`,
	)
	fs.DurationVar(
		&c.MaxAckTimeout,
		"gossip.max-ack-timeout",
		c.MaxAckTimeout,
		`
The maximum time to wait for a peer to acknowledge gossip.

If greater than '--gossip.ack-timeout', the timeout doubles on each resend
up to this maximum. Otherwise every attempt waits '--gossip.ack-timeout'.`,
	)
	fs.IntVar(
		&c.MaxAttempts,
		"gossip.max-attempts",
		c.MaxAttempts,
		`
The maximum number of attempts to deliver gossip to a peer before giving up.

Zero means retry until the peer acknowledges. Gossip that is given up on is
still repaired by anti-entropy.`,
	)
	fs.DurationVar(
		&c.TickInterval,
		"gossip.tick-interval",
		c.TickInterval,
		`
The interval between anti-entropy rounds.

Each round gossips every known value to the cluster to repair gossip that
was lost after being acknowledged by the first peer.`,
	)
	fs.BoolVar(
		&c.DisableAntiEntropy,
		"gossip.disable-anti-entropy",
		c.DisableAntiEntropy,
		`
Disable periodic anti-entropy rounds.`,
	)
}
