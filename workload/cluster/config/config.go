package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/server/broadcast"
)

type Config struct {
	// Nodes is the number of nodes in the cluster.
	Nodes int `json:"nodes" yaml:"nodes"`

	// Values is the number of values to broadcast.
	Values int `json:"values" yaml:"values"`

	// Rate is the number of values broadcast per second.
	Rate int `json:"rate" yaml:"rate"`

	// DropRate is the probability a message between nodes is dropped.
	DropRate float64 `json:"drop_rate" yaml:"drop_rate"`

	// MaxDelay is the maximum delay of each message.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Timeout is the maximum time to wait for the cluster to converge.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Gossip broadcast.Config `json:"gossip" yaml:"gossip"`

	Log log.Config `json:"log" yaml:"log"`
}

func Default() *Config {
	return &Config{
		Nodes:   5,
		Values:  100,
		Rate:    50,
		Timeout: time.Minute,
		Gossip:  *broadcast.Default(),
		Log: log.Config{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if c.Nodes <= 0 {
		return fmt.Errorf("missing nodes")
	}
	if c.Values < 0 {
		return fmt.Errorf("values must not be negative")
	}
	if c.Rate <= 0 {
		return fmt.Errorf("missing rate")
	}
	if c.DropRate < 0 || c.DropRate >= 1 {
		return fmt.Errorf("drop rate must be in [0, 1)")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("missing timeout")
	}
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(
		&c.Nodes,
		"nodes",
		c.Nodes,
		`
The number of cluster nodes to start.`,
	)
	fs.IntVar(
		&c.Values,
		"values",
		c.Values,
		`
The number of values to broadcast. Each value is sent to a random node.`,
	)
	fs.IntVar(
		&c.Rate,
		"rate",
		c.Rate,
		`
The number of values to broadcast per second.`,
	)
	fs.Float64Var(
		&c.DropRate,
		"drop-rate",
		c.DropRate,
		`
The probability that a message between two nodes is dropped, such as 0.2
drops 20% of gossip and gossip acknowledgements. Messages between the
client and nodes are never dropped.`,
	)
	fs.DurationVar(
		&c.MaxDelay,
		"max-delay",
		c.MaxDelay,
		`
The maximum delay of each message. Each message is delayed by a random
duration up to the maximum, so messages may be reordered.`,
	)
	fs.DurationVar(
		&c.Timeout,
		"timeout",
		c.Timeout,
		`
The maximum time to wait for every node to receive every value.`,
	)

	c.Gossip.RegisterFlags(fs)
	c.Log.RegisterFlags(fs)
}
