//go:build linux

package phy

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// bauds maps the handful of rates ISN's low-power targets actually
// use to their termios constants; anything else is rejected rather
// than silently rounded to the nearest supported rate.
var bauds = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// Serial is a real UART device opened in raw mode: no line discipline,
// no echo, no signal generation, 8 data bits, no parity, one stop
// bit. This is the one reference adapter that touches actual hardware
// via golang.org/x/sys/unix ioctls, grounded on the same
// direct-syscall style internal/uring/minimal.go uses for io_uring
// setup, generalized here from a ring-buffer mmap to a termios
// get/set pair.
type Serial struct {
	f *os.File
}

// OpenSerial opens path (e.g. "/dev/ttyUSB0") and puts it into raw
// mode at baud.
func OpenSerial(path string, baud int) (*Serial, error) {
	b, ok := bauds[baud]
	if !ok {
		return nil, fmt.Errorf("phy: unsupported baud rate %d", baud)
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("phy: open %s: %w", path, err)
	}
	fd := int(f.Fd())

	term, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("phy: get termios on %s: %w", path, err)
	}

	term.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	term.Oflag &^= unix.OPOST
	term.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	term.Cflag &^= unix.CSIZE | unix.PARENB
	term.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	term.Cc[unix.VMIN] = 1
	term.Cc[unix.VTIME] = 0
	term.Ispeed = b
	term.Ospeed = b

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, term); err != nil {
		f.Close()
		return nil, fmt.Errorf("phy: set termios on %s: %w", path, err)
	}

	return &Serial{f: f}, nil
}

func (s *Serial) Read(b []byte) (int, error)  { return s.f.Read(b) }
func (s *Serial) Write(b []byte) (int, error) { return s.f.Write(b) }
func (s *Serial) Close() error                { return s.f.Close() }
