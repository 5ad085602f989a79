package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config configures how to load a YAML configuration file.
type Config struct {
	// Path is the YAML configuration file path. If empty no file is loaded
	// and only flags are used.
	Path string

	// ExpandEnv replaces ${VAR} and $VAR references in the file with the
	// corresponding environment variable.
	ExpandEnv bool
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.Path,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	fs.BoolVar(
		&c.ExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)
}

// Load reads the YAML file at path into conf. Fields already set in conf
// (such as flag defaults) are kept unless the file overrides them.
//
// Unknown fields are rejected to catch typos in the configuration.
func Load(conf interface{}, path string, expandEnv bool) error {
	if path == "" {
		return nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %s: %w", path, err)
	}

	if expandEnv {
		buf = []byte(os.Expand(string(buf), expandVar))
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)

	if err := dec.Decode(conf); err != nil {
		return fmt.Errorf("parse config: %s: %w", path, err)
	}

	return nil
}

// expandVar looks up the environment variable with the given name, which may
// include a default in the form 'VAR:default'.
func expandVar(s string) string {
	name, def, hasDefault := strings.Cut(s, ":")
	v, ok := os.LookupEnv(name)
	if !ok && hasDefault {
		return def
	}
	return v
}
