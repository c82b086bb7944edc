package phy

import (
	"os"

	"github.com/creack/pty"
)

// PTY is a pseudo-terminal-backed Device: the master side is this
// process's Device, the slave side is the path a peer terminal
// emulator or serial tool opens to talk to it. cmd/isn-device serves
// on this adapter; cmd/isn-term reaches it through the slave path with
// OpenRaw.
type PTY struct {
	master *os.File
}

// Open creates a new pseudo-terminal pair and returns a PTY wrapping
// the master side, plus the slave's device path a peer process can
// open (e.g. `screen /dev/pts/7`). The slave fd itself is closed once
// its path is known: a Unix98 pty's slave device can be reopened by
// path for as long as the master stays open, so holding the original
// fd open here serves no purpose.
func Open() (*PTY, string, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", err
	}
	name := slave.Name()
	_ = slave.Close()
	return &PTY{master: master}, name, nil
}

func (p *PTY) Read(b []byte) (int, error)  { return p.master.Read(b) }
func (p *PTY) Write(b []byte) (int, error) { return p.master.Write(b) }
func (p *PTY) Close() error                { return p.master.Close() }
