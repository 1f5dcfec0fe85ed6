package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct{ n int }

func (c *counter) Step() { c.n++ }

func TestAdvanceStepsInOrder(t *testing.T) {
	c := NewClock()
	var order []string
	a := stepFunc(func() { order = append(order, "a") })
	b := stepFunc(func() { order = append(order, "b") })
	c.Advance(a, b, a)
	assert.Equal(t, []string{"a", "b", "a"}, order)
	assert.Equal(t, int64(1), c.CurrentTick())
}

type stepFunc func()

func (f stepFunc) Step() { f() }

func TestScheduleFiresAtTargetTick(t *testing.T) {
	c := NewClock()
	fired := -1
	c.Schedule(3, func() { fired = int(c.CurrentTick()) })

	noop := stepFunc(func() {})
	for i := 0; i < 3; i++ {
		c.Advance(noop)
		assert.Equal(t, -1, fired)
	}
	c.Advance(noop)
	assert.Equal(t, 3, fired)
}

func TestScheduleOrderingTieBreak(t *testing.T) {
	c := NewClock()
	var order []int
	c.Schedule(0, func() { order = append(order, 1) })
	c.Schedule(0, func() { order = append(order, 2) })
	c.Advance(stepFunc(func() {}))
	assert.Equal(t, []int{1, 2}, order)
}
