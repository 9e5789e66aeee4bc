package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jellexet/linewatch/pkg/accumulator"
	"github.com/jellexet/linewatch/pkg/buffer"
	"github.com/jellexet/linewatch/pkg/config"
	"github.com/jellexet/linewatch/pkg/logging"
	"github.com/jellexet/linewatch/pkg/netserial"
	"github.com/jellexet/linewatch/pkg/serial"
)

type flags struct {
	configPath   string
	verbose      bool
	capacity     int
	target       string
	input        string
	device       string
	baud         int
	address      string
	pollInterval time.Duration
}

// port is what every input kind provides.
type port interface {
	accumulator.Source
	accumulator.Sink
	Close() error
}

// runFunc runs the watcher with a resolved configuration.
type runFunc func(ctx context.Context, cfg *config.Config) error

func newRootCmd(runner runFunc) *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "linewatch",
		Short: "Watch a serial line for a word",
		Long: `linewatch reads bytes one at a time from a console, a serial device or a
telnet serial bridge, echoes the growing buffer after every byte and announces
whenever the target word appears in it.

The buffer holds at most --capacity bytes. A byte arriving at a full buffer
starts it over with that byte alone.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return runner(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	fl := root.Flags()
	fl.IntVar(&f.capacity, "capacity", 30, "Buffer capacity in bytes")
	fl.StringVar(&f.target, "target", "otter", "Text to watch for")
	fl.StringVar(&f.input, "input", config.InputConsole, "Input kind: console, serial or telnet")
	fl.StringVar(&f.device, "device", "/dev/ttyUSB0", "Serial device for --input serial")
	fl.IntVar(&f.baud, "baud", serial.DefaultBaud, "Baud rate for --input serial")
	fl.StringVar(&f.address, "address", "localhost:2000", "host:port for --input telnet")
	fl.DurationVar(&f.pollInterval, "poll-interval", time.Millisecond, "Idle wait between empty polls (0 spins)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the string library version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buffer.Version)
		},
	})

	return root
}

// resolveConfig loads the config file, if any, and applies the flags the
// user set explicitly on top of it.
func resolveConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("capacity") {
		cfg.Buffer.Capacity = f.capacity
	}
	if changed("target") {
		cfg.Buffer.Target = f.target
	}
	if changed("input") {
		cfg.Input.Kind = f.input
	}
	if changed("device") {
		cfg.Input.Device = f.device
	}
	if changed("baud") {
		cfg.Input.Baud = f.baud
	}
	if changed("address") {
		cfg.Input.Address = f.address
	}
	if changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openInput(cfg *config.Config) (port, error) {
	switch cfg.Input.Kind {
	case config.InputSerial:
		return serial.Open(cfg.Input.Device, cfg.Input.Baud)
	case config.InputTelnet:
		return netserial.Dial(cfg.Input.Address, cfg.Input.DialTimeout)
	default:
		return serial.Console(os.Stdin, os.Stdout)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.Warn("closing input", zap.Error(cerr))
		}
	}()

	a, err := accumulator.New(p, p, cfg.Options(), logger.With(zap.String("input", cfg.Input.Kind)))
	if err != nil {
		return err
	}

	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
