// Package buf provides the pooled, size-bucketed buffers and the
// single-reservation-per-layer state machine every Layer uses to
// satisfy the GetSendBuf/Send/Free contract.
package buf

import (
	"sync"
	"sync/atomic"
)

// sizeClass buckets pooled buffers into a small set of fixed sizes,
// here the three frame variants' maximum payloads.
type sizeClass struct {
	max  int
	pool *sync.Pool
}

// Pool is a size-bucketed pool of reusable byte slices. Buffers
// larger than the biggest bucket are allocated directly and not
// pooled. When capacity is positive, the pool additionally enforces a
// hard ceiling on the total bytes outstanding at once — the mechanism
// behind get_send_buf's documented refusal (spec.md §3/§4.1): once the
// budget is exhausted, Get/TryGet stop handing out buffers until Put
// returns some. capacity<=0 means unbounded, the historical behavior
// every existing caller of NewPool/DefaultPool relies on.
type Pool struct {
	classes  []sizeClass
	capacity int64
	outstanding atomic.Int64
}

// NewPool builds an unbounded Pool with one bucket per size in
// maxSizes, which must be given in increasing order.
func NewPool(maxSizes ...int) *Pool {
	return NewBoundedPool(0, maxSizes...)
}

// NewBoundedPool builds a Pool identical to NewPool but additionally
// refuses to grant more than capacity bytes outstanding at once.
// capacity<=0 means unbounded.
func NewBoundedPool(capacity int64, maxSizes ...int) *Pool {
	p := &Pool{classes: make([]sizeClass, len(maxSizes)), capacity: capacity}
	for i, max := range maxSizes {
		max := max
		p.classes[i] = sizeClass{
			max: max,
			pool: &sync.Pool{
				New: func() interface{} {
					b := make([]byte, max)
					return &b
				},
			},
		}
	}
	return p
}

// DefaultPool buckets at the three frame variants' maximum payloads:
// short (64B), long (4096B), jumbo (8192B). Unbounded, matching the
// historical in-process default.
func DefaultPool() *Pool {
	return NewPool(64, 4096, 8192)
}

// Available reports how many bytes of size this pool could grant
// right now without reserving anything: min(size, headroom) for a
// bounded pool, or size itself for an unbounded one. This is the pure
// probe half of the driver contract — get_send_buf(dest=none) — and
// never changes outstanding.
func (p *Pool) Available(size int) int {
	if p.capacity <= 0 {
		return size
	}
	headroom := p.capacity - p.outstanding.Load()
	if headroom <= 0 {
		return 0
	}
	if int64(size) > headroom {
		return int(headroom)
	}
	return size
}

// TryGet attempts to reserve size bytes against the pool's budget,
// returning ok=false without allocating anything if capacity is
// exhausted. Unbounded pools always succeed.
func (p *Pool) TryGet(size int) ([]byte, bool) {
	if p.capacity > 0 {
		for {
			cur := p.outstanding.Load()
			if p.capacity-cur < int64(size) {
				return nil, false
			}
			if p.outstanding.CompareAndSwap(cur, cur+int64(size)) {
				break
			}
		}
	}
	return p.alloc(size), true
}

// Get returns a buffer of at least size bytes, sliced to exactly
// size. Buffers come from the smallest bucket that fits size. On a
// bounded pool whose budget cannot cover size, Get returns nil;
// callers that need the refusal reported explicitly use TryGet.
func (p *Pool) Get(size int) []byte {
	b, _ := p.TryGet(size)
	return b
}

func (p *Pool) alloc(size int) []byte {
	for _, c := range p.classes {
		if size <= c.max {
			bp := c.pool.Get().(*[]byte)
			return (*bp)[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the pool bucket matching its capacity, crediting
// len(buf) back to the outstanding budget on a bounded pool. Buffers
// whose capacity doesn't match a bucket exactly (including anything
// allocated via the overflow path) are simply dropped for the
// collector, but still credited back to the budget.
func (p *Pool) Put(buf []byte) {
	if p.capacity > 0 {
		p.outstanding.Add(-int64(len(buf)))
	}
	c := cap(buf)
	for _, class := range p.classes {
		if c == class.max {
			full := buf[:c]
			class.pool.Put(&full)
			return
		}
	}
}
