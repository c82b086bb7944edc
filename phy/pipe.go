package phy

import "io"

// pipeDevice is one end of an in-memory Pipe: an io.PipeReader paired
// with the peer's io.PipeWriter, closed together.
type pipeDevice struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeDevice) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeDevice) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeDevice) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Pipe builds a pair of connected in-memory Devices, the reference
// loopback PHY used by tests and examples in place of a real
// transport. Bytes written to a are delivered to b's Read and vice
// versa; both ends are
// unbuffered, matching io.Pipe's synchronous hand-off semantics, so a
// Write blocks until the peer's Recv goroutine catches up — useful
// for exercising the frame layer's backpressure path without a real
// transport.
func Pipe() (a, b Device) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &pipeDevice{r: r1, w: w2}, &pipeDevice{r: r2, w: w1}
}
