package serial

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/jellexet/linewatch/pkg/accumulator"
)

// lineEnd is what a println on the other side of a serial monitor emits.
const lineEnd = "\r\n"

// Port reads bytes from one file and writes text to another. The input
// queue is inspected with TIOCINQ, so Available never blocks.
type Port struct {
	in    *os.File
	out   *os.File
	inFd  int
	prev  *unix.Termios // terminal state to restore on Close, nil if untouched
	owned bool          // Close also closes the files
}

var (
	_ accumulator.Source = (*Port)(nil)
	_ accumulator.Sink   = (*Port)(nil)
)

// NewPort wraps in and out without touching terminal settings.
func NewPort(in, out *os.File) *Port {
	return &Port{
		in:   in,
		out:  out,
		inFd: int(in.Fd()),
	}
}

// Console wraps stdin and stdout. A terminal on in is switched to raw mode,
// keeping Ctrl-C as a signal.
func Console(in, out *os.File) (*Port, error) {
	p := NewPort(in, out)
	if !term.IsTerminal(p.inFd) {
		return p, nil
	}
	prev, err := EnableRawMode(p.inFd, true)
	if err != nil {
		return nil, fmt.Errorf("serial: enable raw mode: %w", err)
	}
	p.prev = prev
	return p, nil
}

// Open opens a serial device such as /dev/ttyUSB0 at the given baud rate.
func Open(device string, baud int) (*Port, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", device, err)
	}

	p := NewPort(f, f)
	prev, err := configureLine(p.inFd, baud)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", device, err)
	}
	p.prev = prev
	p.owned = true
	return p, nil
}

// Available returns the number of bytes waiting in the input queue
func (p *Port) Available() (int, error) {
	n, err := unix.IoctlGetInt(p.inFd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("serial: query input queue: %w", err)
	}
	return n, nil
}

// ReadByte reads one queued byte. It returns accumulator.ErrNoData instead
// of blocking when the queue is empty.
func (p *Port) ReadByte() (byte, error) {
	n, err := p.Available()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, accumulator.ErrNoData
	}

	var b [1]byte
	if _, err := io.ReadFull(p.in, b[:]); err != nil {
		return 0, fmt.Errorf("serial: read: %w", err)
	}
	return b[0], nil
}

func (p *Port) WriteString(s string) error {
	_, err := io.WriteString(p.out, s)
	return err
}

// WriteLine writes s followed by CRLF
func (p *Port) WriteLine(s string) error {
	return p.WriteString(s + lineEnd)
}

// Close restores the terminal settings and closes files opened by Open.
func (p *Port) Close() error {
	var errs []error
	if p.prev != nil {
		if err := DisableRawMode(p.inFd, p.prev); err != nil {
			errs = append(errs, fmt.Errorf("serial: restore terminal: %w", err))
		}
		p.prev = nil
	}
	if p.owned {
		if err := p.in.Close(); err != nil {
			errs = append(errs, err)
		}
		if p.out != p.in {
			if err := p.out.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		p.owned = false
	}
	return errors.Join(errs...)
}
