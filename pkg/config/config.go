package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jellexet/linewatch/pkg/accumulator"
	"github.com/jellexet/linewatch/pkg/serial"
)

// Input kinds
const (
	InputConsole = "console"
	InputSerial  = "serial"
	InputTelnet  = "telnet"
)

// Config represents the complete linewatch configuration
type Config struct {
	Buffer       BufferConfig   `yaml:"buffer"`
	Messages     MessagesConfig `yaml:"messages"`
	Input        InputConfig    `yaml:"input"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	Logging      LoggingConfig  `yaml:"logging"`
}

// BufferConfig sizes the buffer and names the text to watch for
type BufferConfig struct {
	Capacity int    `yaml:"capacity"`
	Target   string `yaml:"target"`
}

// MessagesConfig holds the fixed lines written to the output
type MessagesConfig struct {
	Greeting string `yaml:"greeting"`
	Notice   string `yaml:"notice"`
	Confirm  string `yaml:"confirm"`
}

// InputConfig selects where bytes come from
type InputConfig struct {
	Kind        string        `yaml:"kind"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	opts := accumulator.DefaultOptions()
	return &Config{
		Buffer: BufferConfig{
			Capacity: opts.Capacity,
			Target:   opts.Target,
		},
		Messages: MessagesConfig{
			Greeting: opts.Greeting,
			Notice:   opts.Notice,
			Confirm:  opts.Confirm,
		},
		Input: InputConfig{
			Kind:        InputConsole,
			Device:      "/dev/ttyUSB0",
			Baud:        serial.DefaultBaud,
			Address:     "localhost:2000",
			DialTimeout: 5 * time.Second,
		},
		PollInterval: time.Millisecond,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from a YAML file. Fields missing from the file
// keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined
func (c *Config) Validate() error {
	var errs []error

	if err := c.Options().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Input.Kind {
	case InputConsole:
	case InputSerial:
		if c.Input.Device == "" {
			errs = append(errs, errors.New("input.device is required for serial input"))
		}
		if c.Input.Baud <= 0 {
			errs = append(errs, fmt.Errorf("input.baud must be positive, got %d", c.Input.Baud))
		}
	case InputTelnet:
		if c.Input.Address == "" {
			errs = append(errs, errors.New("input.address is required for telnet input"))
		}
		if c.Input.DialTimeout <= 0 {
			errs = append(errs, fmt.Errorf("input.dial_timeout must be positive, got %s", c.Input.DialTimeout))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown input.kind %q (want %s, %s or %s)",
			c.Input.Kind, InputConsole, InputSerial, InputTelnet))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Options converts the configuration into accumulator options
func (c *Config) Options() accumulator.Options {
	return accumulator.Options{
		Capacity:     c.Buffer.Capacity,
		Target:       c.Buffer.Target,
		Greeting:     c.Messages.Greeting,
		Notice:       c.Messages.Notice,
		Confirm:      c.Messages.Confirm,
		PollInterval: c.PollInterval,
	}
}
