package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

const (
	DefaultTCPPort  = 6006
	DefaultUDPPort  = 5005
	DefaultFileSize = 1_000_000
)

// Config holds everything both binaries read from the config file.
type Config struct {
	Discovery DiscoveryConfig         `yaml:"discovery"`
	Server    ServerConfig            `yaml:"server"`
	Client    ClientConfig            `yaml:"client"`
	Transfer  transfer.TransferConfig `yaml:"transfer"`
	LogLevel  string                  `yaml:"log_level"`
}

type DiscoveryConfig struct {
	Port          int           `yaml:"port"`
	BroadcastAddr string        `yaml:"broadcast_addr"`
	Interval      time.Duration `yaml:"interval"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	MDNS          bool          `yaml:"mdns"`
}

type ServerConfig struct {
	ListenHost string `yaml:"listen_host"`
	TCPPort    int    `yaml:"tcp_port"`
	UDPPort    int    `yaml:"udp_port"`
	Name       string `yaml:"name"` // mDNS instance name
}

type ClientConfig struct {
	FileSize    uint64 `yaml:"file_size"`
	NumStream   int    `yaml:"tcp_connections"`
	NumDatagram int    `yaml:"udp_connections"`
	Rounds      int    `yaml:"rounds"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Port:          discovery.DefaultPort,
			BroadcastAddr: discovery.DefaultBroadcastAddr,
			Interval:      discovery.DefaultInterval,
			PollTimeout:   discovery.DefaultPollTimeout,
		},
		Server: ServerConfig{
			TCPPort: DefaultTCPPort,
			UDPPort: DefaultUDPPort,
		},
		Client: ClientConfig{
			FileSize:    DefaultFileSize,
			NumStream:   1,
			NumDatagram: 1,
		},
		Transfer: *transfer.DefaultTransferConfig(),
		LogLevel: "info",
	}
}

// DefaultPath returns the default config file path: ~/.lanspeedtest/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".lanspeedtest", "config.yaml")
	}
	return filepath.Join(home, ".lanspeedtest", "config.yaml")
}

// Load reads the configuration from the given YAML file path. Fields the
// file leaves out keep their defaults. If the file does not exist, it
// returns Default() with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := validPort("discovery.port", c.Discovery.Port, false); err != nil {
		return err
	}
	if c.Discovery.BroadcastAddr == "" {
		return errors.New("discovery.broadcast_addr cannot be empty")
	}
	if c.Discovery.Interval <= 0 {
		return errors.New("discovery.interval must be positive")
	}
	if c.Discovery.PollTimeout <= 0 {
		return errors.New("discovery.poll_timeout must be positive")
	}
	if err := validPort("server.tcp_port", c.Server.TCPPort, true); err != nil {
		return err
	}
	if err := validPort("server.udp_port", c.Server.UDPPort, true); err != nil {
		return err
	}
	if c.Client.NumStream < 0 {
		return errors.New("client.tcp_connections cannot be negative")
	}
	if c.Client.NumDatagram < 0 {
		return errors.New("client.udp_connections cannot be negative")
	}
	if c.Client.Rounds < 0 {
		return errors.New("client.rounds cannot be negative")
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

func validPort(name string, port int, allowZero bool) error {
	if port < 0 || port > 65535 || (port == 0 && !allowZero) {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}
