// Package reactor implements the cooperative, single-thread tasklet
// scheduler: four priority queues, mutex-bit skip-scheduling, timed
// tasklets, and lock-free single-producer/single-consumer channels
// for moving tasklets between cores.
package reactor

// Queue identifies one of the reactor's four priority classes. Lower
// enum value runs first; System preempts Priority preempts User
// preempts Back, but only between tasklets, never mid-tasklet.
type Queue int

const (
	System Queue = iota
	Priority
	User
	Back
	numQueues
)

// Continuation is the three-way outcome a tasklet function reports:
// Done (the tasklet is finished and its cell is freed), Requeue (the
// tasklet runs again on the next Step — used for self-recurring events
// that also separately manage their own deadline via
// ChangeTimedSelf), or Continue (a tail call: the cell is rewritten
// to run a different function next, inheriting the same caller and
// caller channel).
type Continuation int

const (
	Done Continuation = iota
	Requeue
	Continue
)

// Fn is a unit of work the reactor schedules. rt and self let a
// tasklet reschedule or cancel itself (e.g. via ChangeTimedSelf)
// without a package-level global reactor handle.
type Fn func(rt *Reactor, self int, arg any) Result

// Result is what a Fn returns to report its Continuation outcome.
type Result struct {
	Kind    Continuation
	NextFn  Fn  // used when Kind == Continue
	NextArg any // used when Kind == Continue
}

// DoneResult reports the tasklet as complete.
func DoneResult() Result { return Result{Kind: Done} }

// RequeueResult reports the tasklet should run again on the next Step.
func RequeueResult() Result { return Result{Kind: Requeue} }

// ContinueResult reports a tail call to fn/arg, reusing this
// tasklet's cell (and its caller linkage).
func ContinueResult(fn Fn, arg any) Result {
	return Result{Kind: Continue, NextFn: fn, NextArg: arg}
}

// cell is one storage slot in the reactor's fixed-capacity array.
// Every cell is on exactly one of a queue's live list or the shared
// free list at all times, linked via prev/next indices rather than
// bits packed into a function pointer (the rewrite's answer to the
// source's pointer-bit-packing trick).
type cell struct {
	fn            Fn
	arg           any
	callerCont    int // index of a continuation cell to resume, -1 if none
	callerCh      *Channel
	scheduledTime uint32
	timed         bool
	mutexBits     uint32
	queue         Queue
	prev, next    int
	inUse         bool
}
