// Package config provides wextctl configuration loaded from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/mdlayher/wext"
	"gopkg.in/yaml.v3"
)

const logPrefix = "config:Load"

// EnvPrefix is the prefix of environment variables which override values
// from the configuration file, such as WEXT_NATS_URL.
const EnvPrefix = "WEXT"

// Config holds the wextctl configuration.
type Config struct {
	// Events: publish to NATS at NATSURL if set, and to rtnetlink if Netlink
	// is set.
	NATSURL       string `yaml:"nats_url" json:"nats_url" envconfig:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix" envconfig:"SUBJECT_PREFIX"`
	Netlink       bool   `yaml:"netlink" json:"netlink" envconfig:"NETLINK"`

	// Logging. An empty LogFile logs to stderr.
	LogLevel      string `yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL"`
	LogFile       string `yaml:"log_file" json:"log_file" envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" json:"log_max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `yaml:"log_max_backups" json:"log_max_backups" envconfig:"LOG_MAX_BACKUPS"`

	// Default output format: table, json or yaml.
	Output string `yaml:"output" json:"output" envconfig:"OUTPUT"`

	// Software radios to register.
	Devices []Device `yaml:"devices" json:"devices" ignored:"true"`
}

// A Device configures one software radio.
type Device struct {
	Name         string    `yaml:"name" json:"name"`
	Index        int       `yaml:"index" json:"index"`
	HardwareAddr string    `yaml:"hwaddr" json:"hwaddr"`
	SSID         string    `yaml:"ssid" json:"ssid"`
	Channel      int       `yaml:"channel" json:"channel"`
	Mode         string    `yaml:"mode" json:"mode"`
	Networks     []Network `yaml:"networks" json:"networks"`
}

// A Network is returned by scans of a software radio.
type Network struct {
	BSSID     string `yaml:"bssid" json:"bssid"`
	SSID      string `yaml:"ssid" json:"ssid"`
	Frequency int    `yaml:"frequency" json:"frequency"`
	Signal    int    `yaml:"signal" json:"signal"`
}

// DefaultPath returns the default config file path: ~/.wext/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".wext", "config.yaml")
	}
	return filepath.Join(home, ".wext", "config.yaml")
}

// Default returns the configuration used when no file exists: a single
// software radio named wlan0.
func Default() *Config {
	return &Config{
		SubjectPrefix: wext.DefaultSubjectPrefix,
		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		Output:        "table",
		Devices: []Device{{
			Name:         "wlan0",
			Index:        1,
			HardwareAddr: "02:00:00:00:00:01",
			Channel:      1,
			Mode:         "managed",
		}},
	}
}

// Load reads the configuration from the given YAML file path and applies
// environment overrides. If the file does not exist, the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, path, err)
		}
	case os.IsNotExist(err):
		slog.Debug(fmt.Sprintf("%s - %s not found, using defaults", logPrefix, path))
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}

	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("%s - unknown output format %q", logPrefix, c.Output)
	}

	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 {
		return fmt.Errorf("%s - log rotation limits must not be negative", logPrefix)
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" || len(d.Name) >= wext.NameLen {
			return fmt.Errorf("%s - invalid device name %q", logPrefix, d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%s - duplicate device %q", logPrefix, d.Name)
		}
		seen[d.Name] = true

		if d.HardwareAddr != "" {
			if _, err := net.ParseMAC(d.HardwareAddr); err != nil {
				return fmt.Errorf("%s - device %s: %w", logPrefix, d.Name, err)
			}
		}
		if d.Mode != "" {
			if _, err := wext.ParseMode(d.Mode); err != nil {
				return fmt.Errorf("%s - device %s: %w", logPrefix, d.Name, err)
			}
		}
		for _, n := range d.Networks {
			if _, err := net.ParseMAC(n.BSSID); err != nil {
				return fmt.Errorf("%s - device %s network %q: %w", logPrefix, d.Name, n.SSID, err)
			}
		}
	}

	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%s - invalid log level %q: %w", logPrefix, c.LogLevel, err)
	}

	return l, nil
}
