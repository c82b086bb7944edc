package isn

import (
	"io"

	"github.com/isotel-go/isn-core/internal/msg"
)

// pipeDevice pairs an io.PipeReader with the peer's io.PipeWriter, the
// same minimal io.ReadWriteCloser shape any physical transport gives a
// FrameLayer. It exists here, rather than importing the phy package,
// so these test helpers do not pull a production package into test
// binaries that do not otherwise need it.
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

// testPipe builds a pair of connected in-memory devices.
func testPipe() (a, b io.ReadWriteCloser) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &pipeDevice{r: r1, w: w2}, &pipeDevice{r: r2, w: w1}
}

// NewTestStackPair builds two Stacks wired back-to-back over an
// in-memory pipe, the way a real device and its counterpart host
// would be connected over a UART, for tests and examples that need a
// full two-party exchange without any real transport.
func NewTestStackPair(tableA, tableB *msg.Table) (a, b *Stack) {
	devA, devB := testPipe()
	opts := DefaultStackOptions()
	return NewStack(devA, tableA, opts), NewStack(devB, tableB, opts)
}

// NewTestStack builds a single Stack over one end of an in-memory
// pipe, handing the caller the other end to drive directly — useful
// for tests that assert on raw wire bytes rather than a second Stack's
// behavior.
func NewTestStack(table *msg.Table) (stack *Stack, peer io.ReadWriteCloser) {
	dev, peerDev := testPipe()
	return NewStack(dev, table, DefaultStackOptions()), peerDev
}
