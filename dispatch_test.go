package glasstokey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchQueue_EnqueueDequeueOrderPreserved(t *testing.T) {
	q := newDispatchQueue(4)
	q.enqueue(DispatchEvent{Label: "a"})
	q.enqueue(DispatchEvent{Label: "b"})

	ev, ok := q.dequeue()
	assert.True(t, ok)
	assert.Equal(t, "a", ev.Label)

	ev, ok = q.dequeue()
	assert.True(t, ok)
	assert.Equal(t, "b", ev.Label)

	_, ok = q.dequeue()
	assert.False(t, ok)
}

func TestDispatchQueue_FullQueueDropsNewest(t *testing.T) {
	q := newDispatchQueue(2)
	q.enqueue(DispatchEvent{Label: "first"})
	q.enqueue(DispatchEvent{Label: "second"})
	q.enqueue(DispatchEvent{Label: "third"}) // should be dropped, not "first"

	m := q.Snapshot()
	assert.Equal(t, uint64(1), m.Dropped)
	assert.Equal(t, uint64(1), m.SuppressedQueueFull)
	assert.Equal(t, 2, m.Depth)

	ev, ok := q.dequeue()
	assert.True(t, ok)
	assert.Equal(t, "first", ev.Label, "oldest entries must survive a drop-newest overflow")

	ev, ok = q.dequeue()
	assert.True(t, ok)
	assert.Equal(t, "second", ev.Label)
}

func TestDispatchQueue_DrainReturnsAllInOrderAndEmpties(t *testing.T) {
	q := newDispatchQueue(8)
	q.enqueueAll([]DispatchEvent{{Label: "x"}, {Label: "y"}, {Label: "z"}})

	out := q.drain()
	assert.Len(t, out, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{out[0].Label, out[1].Label, out[2].Label})
	assert.Equal(t, 0, q.len())
}

func TestDispatchQueue_MetricsTrackEnqueuedAndDepth(t *testing.T) {
	q := newDispatchQueue(8)
	q.enqueue(DispatchEvent{})
	q.enqueue(DispatchEvent{})
	m := q.Snapshot()
	assert.Equal(t, uint64(2), m.Enqueued)
	assert.Equal(t, 2, m.Depth)

	q.dequeue()
	m = q.Snapshot()
	assert.Equal(t, 1, m.Depth)
}

func TestDispatchQueue_NoteSuppressedTypingIncrementsIndependently(t *testing.T) {
	q := newDispatchQueue(4)
	q.noteSuppressedTyping()
	q.noteSuppressedTyping()
	m := q.Snapshot()
	assert.Equal(t, uint64(2), m.SuppressedTyping)
	assert.Equal(t, uint64(0), m.Dropped, "typing suppression must not count as a queue-full drop")
}

func TestDispatchQueue_WrapsAroundRingBoundary(t *testing.T) {
	q := newDispatchQueue(3)
	q.enqueue(DispatchEvent{Label: "1"})
	q.enqueue(DispatchEvent{Label: "2"})
	q.dequeue()
	q.enqueue(DispatchEvent{Label: "3"})
	q.enqueue(DispatchEvent{Label: "4"}) // wraps past the end of buf

	out := q.drain()
	assert.Equal(t, []string{"2", "3", "4"}, []string{out[0].Label, out[1].Label, out[2].Label})
}
