package phy

import "os"

// rawFile is a Device over any already-existing path opened for
// read/write without touching termios at all — the right adapter for
// a pty slave path (isn-term connecting to an isn-device's announced
// /dev/pts/N) or any other raw byte device that needs no baud/mode
// setup, as distinct from Serial's raw-mode UART configuration.
type rawFile struct {
	f *os.File
}

// OpenRaw opens path for read/write with no termios configuration.
func OpenRaw(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &rawFile{f: f}, nil
}

func (r *rawFile) Read(b []byte) (int, error)  { return r.f.Read(b) }
func (r *rawFile) Write(b []byte) (int, error) { return r.f.Write(b) }
func (r *rawFile) Close() error                { return r.f.Close() }
