package serial

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrUnsupportedBaud is returned for rates without a termios constant.
var ErrUnsupportedBaud = errors.New("serial: unsupported baud rate")

// DefaultBaud matches the rate most boards print at.
const DefaultBaud = 9600

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

func baudFlag(baud int) (uint32, error) {
	flag, ok := baudRates[baud]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
	return flag, nil
}

// makeRaw turns off canonical input, echo and all input and output
// processing. Reads return immediately with whatever is queued (VMIN=0,
// VTIME=0). When signals is set, Ctrl-C and Ctrl-Z still raise SIGINT and
// SIGTSTP instead of arriving as bytes.
func makeRaw(t *unix.Termios, signals bool) {
	t.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN
	if !signals {
		t.Lflag &^= unix.ISIG
	}
	t.Iflag &^= unix.IXON
	t.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP
	t.Oflag &^= unix.OPOST

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
}

// setLine configures 8N1 without flow control at the given rate.
func setLine(t *unix.Termios, baud uint32) {
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | baud
	t.Ispeed = baud
	t.Ospeed = baud
}

// EnableRawMode puts the terminal behind fd into raw mode and returns the
// previous state for DisableRawMode.
func EnableRawMode(fd int, signals bool) (*unix.Termios, error) {
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	newState := *oldState
	makeRaw(&newState, signals)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return nil, err
	}

	return oldState, nil
}

// DisableRawMode resets the terminal to previous state
func DisableRawMode(fd int, prevState *unix.Termios) error {
	return unix.IoctlSetTermios(fd, unix.TCSETS, prevState)
}

// configureLine sets raw mode and the line speed of a serial device.
func configureLine(fd int, baud int) (*unix.Termios, error) {
	flag, err := baudFlag(baud)
	if err != nil {
		return nil, err
	}

	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("serial: not a terminal device: %w", err)
	}

	newState := *oldState
	makeRaw(&newState, false)
	setLine(&newState, flag)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return nil, fmt.Errorf("serial: set line settings: %w", err)
	}
	return oldState, nil
}
