package timing

// A Callback is invoked when a scheduled event becomes due. The
// userdata value is handed back verbatim from the ScheduleEvent call
// that created the event. The lateness argument is the number of
// virtual cycles by which the trigger lagged its scheduled time; it is
// never negative. A callback runs on the core thread and may schedule
// further events, including for its own event type.
type Callback func(userdata uint64, lateness int64)

// An EventType identifies one registered kind of deferred work, such
// as a peripheral timer or a video sync point. Event types are created
// by Scheduler.RegisterEvent and stay valid until Shutdown. Two
// registrations yield two distinct types even under the same name.
type EventType struct {
	name     string
	callback Callback
}

// Name returns the diagnostic name the event type was registered
// under. The name carries no identity; it only shows up in logs,
// traces and savestates.
func (t *EventType) Name() string {
	return t.name
}

// FromThread selects the submission path of ScheduleEventFromThread.
type FromThread int

const (
	// FromCoreThread is the path for the thread running the execution
	// core. It inserts into the event queue directly and may shorten
	// the current slice.
	FromCoreThread FromThread = iota

	// FromNonCoreThread is the only safe path for any other thread.
	// The submission is staged in a lock-protected inbox and merged
	// into the queue by the next Advance.
	FromNonCoreThread
)

// An Event is one pending instance of an EventType, owned by the event
// queue from submission until it is popped and handed to its callback.
// Events are never mutated in place; rescheduling always submits a
// fresh Event.
type Event struct {
	// Time is the virtual cycle at which the event becomes due. It may
	// lie in the past, in which case the event fires on the next
	// Advance.
	Time int64

	// Sequence is assigned at submission and increases monotonically.
	// It breaks ties between events due at the same cycle:
	// first-submitted-first-fired.
	Sequence uint64

	// UserData is an opaque payload for the callback.
	UserData uint64

	// Type is the registered kind of the event.
	Type *EventType
}
