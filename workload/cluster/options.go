package cluster

import (
	"time"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/server/broadcast"
)

type options struct {
	nodes    int
	dropRate float64
	maxDelay time.Duration
	seed     int64
	runID    string
	gossip   *broadcast.Config
	logger   log.Logger
}

type nodesOption int

func (o nodesOption) apply(opts *options) {
	opts.nodes = int(o)
}

// WithNodes configures the number of nodes in the cluster. Defaults to 3.
func WithNodes(nodes int) Option {
	return nodesOption(nodes)
}

type dropRateOption float64

func (o dropRateOption) apply(opts *options) {
	opts.dropRate = float64(o)
}

// WithDropRate configures the probability that a message between nodes is
// dropped.
func WithDropRate(rate float64) Option {
	return dropRateOption(rate)
}

type maxDelayOption time.Duration

func (o maxDelayOption) apply(opts *options) {
	opts.maxDelay = time.Duration(o)
}

// WithMaxDelay configures the maximum delay of each message.
func WithMaxDelay(delay time.Duration) Option {
	return maxDelayOption(delay)
}

type seedOption int64

func (o seedOption) apply(opts *options) {
	opts.seed = int64(o)
}

// WithSeed configures the seed for dropping and delaying messages.
func WithSeed(seed int64) Option {
	return seedOption(seed)
}

type runIDOption string

func (o runIDOption) apply(opts *options) {
	opts.runID = string(o)
}

// WithRunID configures the ID attached to the cluster logs. Defaults to a
// random UUID.
func WithRunID(id string) Option {
	return runIDOption(id)
}

type gossipConfigOption struct {
	Config *broadcast.Config
}

func (o gossipConfigOption) apply(opts *options) {
	opts.gossip = o.Config
}

// WithGossipConfig configures the nodes gossip config.
func WithGossipConfig(config *broadcast.Config) Option {
	return gossipConfigOption{Config: config}
}

type loggerOption struct {
	Logger log.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.Logger
}

// WithLogger configures the logger. Defaults to no output.
func WithLogger(logger log.Logger) Option {
	return loggerOption{Logger: logger}
}

type Option interface {
	apply(*options)
}
