package accumulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jellexet/linewatch/pkg/buffer"
)

var (
	// ErrNoData is returned by a Source when ReadByte is called with nothing available.
	ErrNoData = errors.New("no data available")
	// ErrInvalidOptions is wrapped by New when the options cannot be used.
	ErrInvalidOptions = errors.New("invalid accumulator options")
)

// Source yields bytes one at a time. Available never blocks.
type Source interface {
	Available() (int, error)
	ReadByte() (byte, error)
}

// Sink accepts text for display. WriteLine adds the line terminator.
type Sink interface {
	WriteString(s string) error
	WriteLine(s string) error
}

// Options configure an Accumulator
type Options struct {
	Capacity     int
	Target       string
	Greeting     string
	Notice       string
	Confirm      string
	PollInterval time.Duration // idle wait between empty cycles, 0 polls without pause
}

// DefaultOptions returns the stock settings: a 30 byte buffer watching for "otter"
func DefaultOptions() Options {
	return Options{
		Capacity: 30,
		Target:   "otter",
		Greeting: "String Library version: ",
		Notice:   "Look!  An otter in the String!",
		Confirm:  "now it's gone.",
	}
}

// Validate checks the options New relies on
func (o Options) Validate() error {
	if o.Capacity < 1 {
		return fmt.Errorf("%w: capacity %d must be at least 1", ErrInvalidOptions, o.Capacity)
	}
	if o.Target == "" {
		return fmt.Errorf("%w: target is empty", ErrInvalidOptions)
	}
	if len(o.Target) > o.Capacity {
		return fmt.Errorf("%w: target %q is longer than capacity %d", ErrInvalidOptions, o.Target, o.Capacity)
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("%w: negative poll interval %s", ErrInvalidOptions, o.PollInterval)
	}
	return nil
}

// Stats counts what the accumulator has seen so far
type Stats struct {
	Received   int
	Overflows  int
	Detections int
}

// Accumulator collects incoming bytes into a bounded buffer and announces
// every time the target shows up in it. It owns the buffer and is meant to
// be driven by a single goroutine.
type Accumulator struct {
	in     Source
	out    Sink
	opts   Options
	buf    *buffer.Bounded
	stats  Stats
	logger *zap.Logger
}

// New creates an Accumulator reading from in and writing to out
func New(in Source, out Sink, opts Options, logger *zap.Logger) (*Accumulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	buf, err := buffer.NewBounded(opts.Capacity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		in:     in,
		out:    out,
		opts:   opts,
		buf:    buf,
		logger: logger,
	}, nil
}

// Buffer returns the current buffer content
func (a *Accumulator) Buffer() string {
	return a.buf.String()
}

// Stats returns the counters collected so far
func (a *Accumulator) Stats() Stats {
	return a.stats
}

// OnChar appends c, or restarts the buffer with c alone when it is full.
func (a *Accumulator) OnChar(c byte) {
	a.stats.Received++
	if err := a.buf.Append(c); err == nil {
		return
	}

	a.stats.Overflows++
	a.logger.Debug("buffer full, restarting",
		zap.Int("capacity", a.buf.Cap()),
		zap.String("dropped", a.buf.String()))
	// Set cannot fail here: capacity is at least 1.
	_ = a.buf.Set(string([]byte{c}))
}

// Start writes the greeting followed by the string library version
func (a *Accumulator) Start() error {
	if err := a.out.WriteString(a.opts.Greeting); err != nil {
		return fmt.Errorf("write greeting: %w", err)
	}
	if err := a.out.WriteLine(buffer.Version); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

// Poll runs one cycle: consume at most one byte and echo the buffer, then
// check for the target. Only the source and sink can make it fail.
func (a *Accumulator) Poll() error {
	_, err := a.poll()
	return err
}

func (a *Accumulator) poll() (received bool, err error) {
	n, err := a.in.Available()
	if err != nil {
		return false, fmt.Errorf("check input: %w", err)
	}
	if n > 0 {
		c, err := a.in.ReadByte()
		if err != nil {
			return false, fmt.Errorf("read input: %w", err)
		}
		a.OnChar(c)
		received = true
		if err := a.out.WriteLine(a.buf.String()); err != nil {
			return received, fmt.Errorf("echo buffer: %w", err)
		}
	}

	if !a.buf.Contains(a.opts.Target) {
		return received, nil
	}

	a.stats.Detections++
	a.logger.Info("target found",
		zap.String("target", a.opts.Target),
		zap.String("buffer", a.buf.String()),
		zap.Int("position", a.buf.IndexOf(a.opts.Target)))

	if err := a.out.WriteLine(a.opts.Notice); err != nil {
		return received, fmt.Errorf("write notice: %w", err)
	}
	if err := a.out.WriteLine(a.buf.String()); err != nil {
		return received, fmt.Errorf("write buffer: %w", err)
	}
	a.buf.Reset()
	if err := a.out.WriteLine(a.opts.Confirm); err != nil {
		return received, fmt.Errorf("write confirmation: %w", err)
	}
	return received, nil
}

// Run writes the startup lines and then polls until ctx is cancelled or the
// source or sink fails. It returns ctx.Err() on cancellation.
func (a *Accumulator) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	a.logger.Info("watching input",
		zap.Int("capacity", a.opts.Capacity),
		zap.String("target", a.opts.Target),
		zap.Duration("poll_interval", a.opts.PollInterval))
	defer func() {
		a.logger.Info("stopped",
			zap.Int("received", a.stats.Received),
			zap.Int("overflows", a.stats.Overflows),
			zap.Int("detections", a.stats.Detections))
	}()

	var idle *time.Timer
	if a.opts.PollInterval > 0 {
		idle = time.NewTimer(a.opts.PollInterval)
		defer idle.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		received, err := a.poll()
		if err != nil {
			return err
		}
		if received || idle == nil {
			continue
		}

		idle.Reset(a.opts.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		}
	}
}
