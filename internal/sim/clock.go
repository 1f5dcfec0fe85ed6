// Package sim provides the tick-driven scheduler: a single-threaded Clock
// that steps every attached component in a fixed order each tick, plus a
// min-heap of deferred callbacks (seek completions, mainly) fired when
// their target tick arrives.
//
// Nothing here spawns a goroutine or takes a lock; cooperative,
// deterministic ordering within one tick is the whole model.
package sim

import "container/heap"

// Stepper is one component advanced once per tick.
type Stepper interface {
	Step()
}

// event is a deferred callback scheduled to fire at a future tick.
type event struct {
	fireTick int64
	seq      int64 // tie-break for equal fireTick, preserving schedule order
	fn       func()
}

type eventHeap []*event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].fireTick != h[j].fireTick {
		return h[i].fireTick < h[j].fireTick
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Clock is the tick counter and event scheduler shared by every component in
// a simulation. A drive.Interface holds a pointer to it to Schedule seek
// completion, and the control unit holds one to Advance it while waiting for
// a seek; Clock itself does not know about any of them.
type Clock struct {
	tick   int64
	seq    int64
	events eventHeap
}

// NewClock returns a Clock at tick 0 with an empty event queue.
func NewClock() *Clock {
	return &Clock{}
}

// CurrentTick returns the tick number the clock is currently on.
func (c *Clock) CurrentTick() int64 { return c.tick }

// Schedule arranges for fn to run after delay ticks (delay must be >= 0),
// i.e. when CurrentTick first reaches c.tick+delay.
func (c *Clock) Schedule(delay int64, fn func()) {
	c.seq++
	heap.Push(&c.events, &event{fireTick: c.tick + delay, seq: c.seq, fn: fn})
}

// Advance runs one tick: first any events whose fireTick has arrived, then
// steppers in the given order. Disks are expected to appear twice in the
// order (they rotate at twice the tick rate), the control unit once, then
// the host driver once.
func (c *Clock) Advance(order ...Stepper) {
	for len(c.events) > 0 && c.events[0].fireTick <= c.tick {
		ev := heap.Pop(&c.events).(*event)
		ev.fn()
	}
	for _, s := range order {
		s.Step()
	}
	c.tick++
}
