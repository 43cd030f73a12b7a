package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "250ms".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// DemoConfig is the YAML configuration for the demo command. Flags override
// the corresponding fields.
type DemoConfig struct {
	// Host is an external upstream base URL. Empty starts the built-in
	// sample server.
	Host string `yaml:"host,omitempty"`

	// Database is a SQLite path for persistence. Empty uses in-memory
	// storage.
	Database string `yaml:"database,omitempty"`

	// PollInterval enables the polling segment of the demo when > 0.
	PollInterval Duration `yaml:"poll_interval,omitempty"`

	// PollTicks is how many poll intervals to wait before stopping the
	// poller. Default 3.
	PollTicks int `yaml:"poll_ticks,omitempty"`
}

// LoadDemoConfig reads and parses a YAML config file.
func LoadDemoConfig(path string) (*DemoConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DemoConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
