package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/fanout/pkg/config"
	"github.com/andydunstall/fanout/pkg/log"
	"github.com/andydunstall/fanout/server/broadcast"
)

// Tests the default configuration is valid.
func TestConfig_Default(t *testing.T) {
	conf := Default()
	assert.NoError(t, conf.Validate())
	assert.Equal(t, 100*time.Millisecond, conf.Gossip.AckTimeout)
	assert.Equal(t, 250*time.Millisecond, conf.Gossip.TickInterval)
}

// Tests loading the server configuration from YAML.
func TestConfig_LoadYAML(t *testing.T) {
	yaml := `
gossip:
  ack_timeout: 50ms
  max_ack_timeout: 1s
  max_attempts: 5
  tick_interval: 2s
  disable_anti_entropy: true

admin:
  bind_addr: 127.0.0.1:8002

log:
  level: debug
  subsystems:
    - foo
    - bar

grace_period: 2m
`

	f, err := os.CreateTemp("", "fanout")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = f.WriteString(yaml)
	require.NoError(t, err)

	loadedConf := Default()
	require.NoError(t, config.Load(loadedConf, f.Name(), false))

	expectedConf := &Config{
		Gossip: broadcast.Config{
			AckTimeout:         50 * time.Millisecond,
			MaxAckTimeout:      time.Second,
			MaxAttempts:        5,
			TickInterval:       2 * time.Second,
			DisableAntiEntropy: true,
		},
		Admin: AdminConfig{
			BindAddr: "127.0.0.1:8002",
		},
		Log: log.Config{
			Level: "debug",
			Subsystems: []string{
				"foo",
				"bar",
			},
		},
		GracePeriod: 2 * time.Minute,
	}
	assert.Equal(t, expectedConf, loadedConf)
	assert.NoError(t, loadedConf.Validate())
}

// Tests loading the server configuration from flags.
func TestConfig_LoadFlags(t *testing.T) {
	args := []string{
		"--gossip.ack-timeout", "50ms",
		"--gossip.max-ack-timeout", "1s",
		"--gossip.max-attempts", "5",
		"--gossip.tick-interval", "2s",
		"--gossip.disable-anti-entropy",
		"--admin.bind-addr", "127.0.0.1:8002",
		"--log.level", "debug",
		"--log.subsystems", "foo,bar",
		"--grace-period", "2m",
	}

	fs := pflag.NewFlagSet("", pflag.PanicOnError)

	loadedConf := Default()
	loadedConf.RegisterFlags(fs)

	require.NoError(t, fs.Parse(args))

	expectedConf := &Config{
		Gossip: broadcast.Config{
			AckTimeout:         50 * time.Millisecond,
			MaxAckTimeout:      time.Second,
			MaxAttempts:        5,
			TickInterval:       2 * time.Second,
			DisableAntiEntropy: true,
		},
		Admin: AdminConfig{
			BindAddr: "127.0.0.1:8002",
		},
		Log: log.Config{
			Level: "debug",
			Subsystems: []string{
				"foo",
				"bar",
			},
		},
		GracePeriod: 2 * time.Minute,
	}
	assert.Equal(t, expectedConf, loadedConf)
}

func TestConfig_Validate(t *testing.T) {
	conf := Default()
	conf.Gossip.AckTimeout = 0
	assert.ErrorContains(t, conf.Validate(), "gossip: missing ack timeout")

	conf = Default()
	conf.Log.Level = "trace"
	assert.ErrorContains(t, conf.Validate(), "log:")

	conf = Default()
	conf.GracePeriod = 0
	assert.ErrorContains(t, conf.Validate(), "missing grace period")
}
