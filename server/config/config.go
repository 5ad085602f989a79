package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/server/broadcast"
)

type AdminConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP
	// connections. If empty the admin server is disabled.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AdminConfig) Validate() error {
	return nil
}

type Config struct {
	Gossip broadcast.Config `json:"gossip" yaml:"gossip"`
	Admin  AdminConfig      `json:"admin" yaml:"admin"`
	Log    log.Config       `json:"log" yaml:"log"`

	// GracePeriod is the duration to wait for pending admin requests to
	// complete when the node stops.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

func Default() *Config {
	return &Config{
		Gossip: *broadcast.Default(),
		Log: log.Config{
			Level: "info",
		},
		GracePeriod: time.Second * 5,
	}
}

func (c *Config) Validate() error {
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("missing grace period")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	c.Gossip.RegisterFlags(fs)

	fs.StringVar(
		&c.Admin.BindAddr,
		"admin.bind-addr",
		c.Admin.BindAddr,
		`
The host/port to listen for incoming admin connections.

The admin server exposes health, Prometheus metrics and the node status. It
is disabled by default, since the node communicates over stdin and stdout.

If the host is unspecified it defaults to all listeners, such as
'--admin.bind-addr :8002' will listen on '0.0.0.0:8002'`,
	)

	c.Log.RegisterFlags(fs)

	fs.DurationVar(
		&c.GracePeriod,
		"grace-period",
		c.GracePeriod,
		`
Maximum duration after the node stops to wait for pending admin requests to
complete before closing the admin server.`,
	)
}
