package timing

import "container/heap"

// EventQueue is a queue of pending events ordered by trigger time.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// EventQueueImpl is a heap-based EventQueue. It is owned by the core
// thread exclusively and therefore carries no lock; submissions from
// other threads go through the cross-thread inbox instead.
type EventQueueImpl struct {
	events eventHeap
}

// NewEventQueue creates and returns a newly created EventQueue.
func NewEventQueue() *EventQueueImpl {
	q := new(EventQueueImpl)
	q.events = make(eventHeap, 0)
	heap.Init(&q.events)
	return q
}

// Push adds an event to the event queue.
func (q *EventQueueImpl) Push(evt Event) {
	heap.Push(&q.events, evt)
}

// Pop returns the next event to fire, removing it from the queue.
func (q *EventQueueImpl) Pop() Event {
	return heap.Pop(&q.events).(Event)
}

// Len returns the number of events in the queue.
func (q *EventQueueImpl) Len() int {
	return q.events.Len()
}

// Peek returns the next event to fire without removing it from the
// queue.
func (q *EventQueueImpl) Peek() Event {
	return q.events[0]
}

type eventHeap []Event

// Len returns the length of the event queue.
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Events fire in
// non-decreasing trigger time; among events due at the same cycle the
// one submitted first fires first. Deterministic replay depends on
// this total order.
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Sequence < h[j].Sequence
}

// Swap changes the position of two events in the event queue.
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds an event into the event queue.
func (h *eventHeap) Push(x interface{}) {
	evt := x.(Event)
	*h = append(*h, evt)
}

// Pop removes and returns the next event to fire.
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[0 : n-1]
	return evt
}
