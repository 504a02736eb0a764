// Package config loads tcpsub CLI settings from a TOML file and the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/Zereker/tcpsub"
)

// Environment variables that override file values.
const (
	EnvHost        = "TCPSUB_HOST"
	EnvPort        = "TCPSUB_PORT"
	EnvCodec       = "TCPSUB_CODEC"
	EnvDialTimeout = "TCPSUB_DIAL_TIMEOUT"
	EnvQueueSize   = "TCPSUB_QUEUE_SIZE"
	EnvLogLevel    = "TCPSUB_LOG_LEVEL"
)

// Config is the CLI configuration loaded from a TOML file.
type Config struct {
	// Host to dial (subscribe) or bind (publish). Empty means the local system.
	Host string `toml:"host"`
	Port uint16 `toml:"port"`
	// Codec used for decoded reads and value publishing: json, cbor, yaml or toml.
	Codec       string        `toml:"codec"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	// Frames queued per subscriber on the publish side.
	QueueSize int    `toml:"queue_size"`
	LogLevel  string `toml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host:        "127.0.0.1",
		Port:        7070,
		Codec:       "json",
		DialTimeout: 5 * time.Second,
		QueueSize:   16,
		LogLevel:    "info",
	}
}

// Load reads path (if non-empty), applies environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		cfg.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvPort)
		}
		cfg.Port = uint16(port)
	}
	if v := os.Getenv(EnvCodec); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv(EnvDialTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvDialTimeout)
		}
		cfg.DialTimeout = d
	}
	if v := os.Getenv(EnvQueueSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvQueueSize)
		}
		cfg.QueueSize = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return errors.New("port must be set")
	}
	if _, err := tcpsub.CodecByName(c.Codec); err != nil {
		return err
	}
	if c.QueueSize < 0 {
		return errors.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	return nil
}

// CodecImpl returns the codec named by Codec.
func (c *Config) CodecImpl() tcpsub.Codec {
	codec, err := tcpsub.CodecByName(c.Codec)
	if err != nil {
		return tcpsub.JSON
	}
	return codec
}
