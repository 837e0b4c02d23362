package timing

import "sync"

// An inboxEntry is one staged cross-thread submission. It keeps the
// requested offset rather than an absolute trigger time: a foreign
// thread's view of the global timer is unreliable (it may sample the
// timer right before the core thread advances it), so the conversion
// is deferred to the merge, which runs on the core thread.
type inboxEntry struct {
	offset   int64
	typ      *EventType
	userdata uint64
}

// crossThreadInbox stages event submissions from threads other than
// the core thread. Appending may block briefly on the lock but never
// on the core thread's progress. Only the core thread drains it, once
// per Advance, preserving submission order.
type crossThreadInbox struct {
	sync.Mutex
	staged []inboxEntry
}

func (in *crossThreadInbox) stage(offset int64, typ *EventType, userdata uint64) {
	in.Lock()
	in.staged = append(in.staged, inboxEntry{offset: offset, typ: typ, userdata: userdata})
	in.Unlock()
}

// drain hands every staged entry to merge, in submission order, and
// empties the inbox. merge runs under the inbox lock; it is the only
// place the core thread's timer and a foreign submission meet.
func (in *crossThreadInbox) drain(merge func(inboxEntry)) {
	in.Lock()
	for _, entry := range in.staged {
		merge(entry)
	}
	in.staged = in.staged[:0]
	in.Unlock()
}

func (in *crossThreadInbox) reset() {
	in.Lock()
	in.staged = nil
	in.Unlock()
}
