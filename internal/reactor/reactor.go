package reactor

import (
	"fmt"
	"sync"

	"github.com/isotel-go/isn-core/internal/clock"
)

const none = -1

// Reactor is the cooperative single-thread scheduler: a fixed-capacity
// array of cells, four priority queues of live tasklets, and a free
// list for unused cells.
type Reactor struct {
	mu sync.Mutex

	cells []cell
	heads [numQueues]int
	tails [numQueues]int
	free  int

	lockedBits   uint32
	nextMutexBit uint32
	queueChanged bool

	clk *clock.Clock
}

// New builds a Reactor with capacity cells, backed by clk for timed
// tasklets.
func New(capacity int, clk *clock.Clock) *Reactor {
	r := &Reactor{
		cells: make([]cell, capacity),
		clk:   clk,
	}
	for q := 0; q < int(numQueues); q++ {
		r.heads[q] = none
		r.tails[q] = none
	}
	for i := range r.cells {
		r.cells[i].prev = i - 1
		r.cells[i].next = i + 1
	}
	if capacity > 0 {
		r.cells[capacity-1].next = none
	}
	r.free = 0
	if capacity == 0 {
		r.free = none
	}
	return r
}

// Capacity returns the total number of tasklet cells.
func (r *Reactor) Capacity() int { return len(r.cells) }

func (r *Reactor) allocLocked() (int, error) {
	if r.free == none {
		return 0, fmt.Errorf("reactor: tasklet queue overflow")
	}
	idx := r.free
	r.free = r.cells[idx].next
	r.cells[idx].inUse = true
	return idx, nil
}

func (r *Reactor) freeCellLocked(idx int) {
	r.cells[idx] = cell{prev: none, next: r.free, callerCont: none}
	r.free = idx
}

func (r *Reactor) appendLocked(q Queue, idx int) {
	c := &r.cells[idx]
	c.queue = q
	c.prev = r.tails[q]
	c.next = none
	if r.tails[q] != none {
		r.cells[r.tails[q]].next = idx
	} else {
		r.heads[q] = idx
	}
	r.tails[q] = idx
	r.queueChanged = true
}

func (r *Reactor) unlinkLocked(q Queue, idx int) {
	c := &r.cells[idx]
	if c.prev != none {
		r.cells[c.prev].next = c.next
	} else {
		r.heads[q] = c.next
	}
	if c.next != none {
		r.cells[c.next].prev = c.prev
	} else {
		r.tails[q] = c.prev
	}
}

// Post schedules fn(arg) onto queue q, to run as soon as Step reaches
// it (subject to mutex skipping).
func (r *Reactor) Post(q Queue, fn Fn, arg any) (int, error) {
	return r.PostAt(q, fn, arg, 0, false)
}

// PostAt schedules fn(arg) onto queue q to run no earlier than at
// (a clock tick), if timed is true; otherwise at runs immediately.
func (r *Reactor) PostAt(q Queue, fn Fn, arg any, at uint32, timed bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, err := r.allocLocked()
	if err != nil {
		return 0, err
	}
	r.cells[idx] = cell{
		fn: fn, arg: arg, queue: q,
		scheduledTime: at, timed: timed,
		callerCont: none,
	}
	r.appendLocked(q, idx)
	return idx, nil
}

// Step makes a single pass over every tasklet that was already queued
// at the time Step was called, in queue priority order, skipping
// mutex-locked and not-yet-due tasklets. A tasklet that requeues or
// continues during this pass runs again on the next Step call, never
// within the same one — otherwise an immediately-ready recurring
// tasklet would starve Step into an infinite loop. It returns true if
// any tasklet ran.
func (r *Reactor) Step() bool {
	ran := false
	for q := System; q < numQueues; q++ {
		if r.stepQueueOnePass(q) {
			ran = true
		}
	}
	return ran
}

// stepQueueOnePass snapshots queue q's live list and runs every
// ready cell in it exactly once.
func (r *Reactor) stepQueueOnePass(q Queue) bool {
	r.mu.Lock()
	now := uint32(0)
	if r.clk != nil {
		now = r.clk.Now()
	}

	var pending []int
	for idx := r.heads[q]; idx != none; idx = r.cells[idx].next {
		pending = append(pending, idx)
	}
	r.mu.Unlock()

	ran := false
	for _, idx := range pending {
		r.mu.Lock()
		c := &r.cells[idx]
		if !c.inUse || c.queue != q {
			r.mu.Unlock() // already consumed by a mutated list since the snapshot
			continue
		}
		if c.mutexBits != 0 && c.mutexBits&r.lockedBits != 0 {
			r.mu.Unlock()
			continue
		}
		if c.timed && int32(c.scheduledTime-now) > 0 {
			r.mu.Unlock()
			continue
		}

		r.unlinkLocked(q, idx)
		fn := c.fn
		arg := c.arg
		r.mu.Unlock()

		res := fn(r, idx, arg)
		ran = true

		r.mu.Lock()
		switch res.Kind {
		case Done:
			r.freeCellLocked(idx)
		case Requeue:
			// Leave timed/scheduledTime as-is: if the tasklet called
			// ChangeTimedSelf during fn, that deadline must survive
			// the requeue; otherwise it runs again on the very next
			// pass, which is Requeue's contract.
			r.appendLocked(q, idx)
		case Continue:
			cc := &r.cells[idx]
			cc.fn = res.NextFn
			cc.arg = res.NextArg
			r.appendLocked(q, idx)
		}
		r.mu.Unlock()
	}
	return ran
}

// Drop cancels a single scheduled tasklet, validating that it still
// matches fn and arg (to defeat a stale index referring to a cell
// that has since been reused). Returns true if a tasklet was removed.
func (r *Reactor) Drop(idx int, fn Fn, arg any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.cells) {
		return false
	}
	c := &r.cells[idx]
	if !c.inUse || !sameFn(c.fn, fn) || c.arg != arg {
		return false
	}
	r.unlinkLocked(c.queue, idx)
	r.freeCellLocked(idx)
	return true
}

// DropAll removes every live tasklet matching both fn and arg across
// all four queues and returns the count removed. This is the
// previously disabled dropall operation, re-implemented and tested.
func (r *Reactor) DropAll(fn Fn, arg any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for q := System; q < numQueues; q++ {
		idx := r.heads[q]
		for idx != none {
			next := r.cells[idx].next
			if sameFn(r.cells[idx].fn, fn) && r.cells[idx].arg == arg {
				r.unlinkLocked(q, idx)
				r.freeCellLocked(idx)
				n++
			}
			idx = next
		}
	}
	return n
}

// ChangeTimed reschedules an active tasklet's deadline.
func (r *Reactor) ChangeTimed(idx int, at uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.cells) || !r.cells[idx].inUse {
		return fmt.Errorf("reactor: change_timed: invalid tasklet index %d", idx)
	}
	r.cells[idx].timed = true
	r.cells[idx].scheduledTime = at
	return nil
}

// ChangeTimedSelf re-arms a recurring timed event from inside its own
// tasklet function, given the self index Step passed it.
func (r *Reactor) ChangeTimedSelf(self int, at uint32) error {
	return r.ChangeTimed(self, at)
}

// GetMutex hands out the next available mutex bit.
func (r *Reactor) GetMutex() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextMutexBit >= 32 { // all 32 bits already handed out
		return 0, fmt.Errorf("reactor: mutex bits exhausted")
	}
	bit := uint32(1) << r.nextMutexBit
	r.nextMutexBit++
	return bit, nil
}

// Lock sets bits in the locked set.
func (r *Reactor) Lock(bits uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockedBits&bits != bits {
		r.queueChanged = true
	}
	r.lockedBits |= bits
}

// Unlock clears bits from the locked set.
func (r *Reactor) Unlock(bits uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockedBits&bits != 0 {
		r.queueChanged = true
	}
	r.lockedBits &^= bits
}

// IsLocked reports whether any of bits is currently locked.
func (r *Reactor) IsLocked(bits uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lockedBits&bits != 0
}

// sameFn compares two Fn values by identity. Go forbids comparing
// func values directly; reflect.Value.Pointer is the idiomatic way to
// recover an identity good enough for "is this the same registered
// callback" checks used by Drop/DropAll.
func sameFn(a, b Fn) bool {
	return funcPtr(a) == funcPtr(b)
}
