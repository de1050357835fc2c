// Package config loads the settings a byte channel is created with.
//
// Example file:
//
//	capacity: 4096
//	timeout: 10s
//	non_blocking: false
//	backing: mmap
//	log_level: debug
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/webbmaffian/go-ringchan/channel"
)

type Config struct {
	// Capacity is the storage size; at most Capacity-1 bytes are buffered.
	Capacity int `yaml:"capacity"`

	// Timeout bounds blocking transfers made through handles. "0" waits
	// without a deadline.
	Timeout string `yaml:"timeout"`

	NonBlocking bool   `yaml:"non_blocking"`
	Backing     string `yaml:"backing"`
	LogLevel    string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Capacity: channel.DefaultCapacity,
		Timeout:  channel.DefaultTimeout.String(),
		Backing:  string(channel.BackingHeap),
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Capacity < 2 {
		errs = append(errs, fmt.Errorf("config: capacity %d: %w", c.Capacity, channel.ErrInvalidCapacity))
	}

	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	if _, err := channel.ParseBacking(c.Backing); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" || c.Timeout == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: timeout: %w", err)
	}

	if d < 0 {
		return 0, fmt.Errorf("config: timeout %s is negative", d)
	}

	return d, nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level

	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}

	return l, nil
}

// NewChannel creates a channel as described by the configuration.
func (c Config) NewChannel(logger *slog.Logger) (*channel.ByteChannel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Validated above.
	timeout, _ := c.TimeoutDuration()
	backing, _ := channel.ParseBacking(c.Backing)

	return channel.NewByteChannel(c.Capacity,
		channel.WithBacking(backing),
		channel.WithDefaultTimeout(timeout),
		channel.WithLogger(logger),
	)
}

// HandleOptions returns the options handles opened by the host layer use.
func (c Config) HandleOptions() []channel.HandleOption {
	if c.NonBlocking {
		return []channel.HandleOption{channel.OpenNonBlocking()}
	}

	return nil
}
