package timing

import "log"

// State is the scheduler state an external savestate mechanism must
// carry to resume deterministically: the virtual timer, the speed
// factors, the sequence counter and every pending event. Event types
// are referenced by registration index and name, not by pointer, so a
// restoring scheduler must register the same event types in the same
// order. The on-disk encoding of State belongs to the embedding
// emulator, not to this package.
type State struct {
	GlobalTimer  int64
	SpeedFactor  float64
	SliceFactor  float64
	NextSequence uint64
	IdleCycles   int64
	Pending      []PendingEventState
}

// PendingEventState is one queued event in savestate form, ordered by
// firing order within State.Pending.
type PendingEventState struct {
	Time      int64
	Sequence  uint64
	UserData  uint64
	TypeIndex int
	TypeName  string
}

// Snapshot captures the resumable scheduler state. Cross-thread
// submissions staged so far are merged first so they are not lost;
// their trigger times bake in the current timer, the same tolerance
// the normal merge path has. Core thread only, between advances.
func (s *Scheduler) Snapshot() State {
	s.moveEvents()

	st := State{
		GlobalTimer:  s.clock.GlobalTimer,
		SpeedFactor:  s.clock.SpeedFactor,
		SliceFactor:  s.clock.SliceFactor,
		NextSequence: s.nextSequence,
		IdleCycles:   s.idleCycles,
	}

	// Drain the heap to list events in firing order, then rebuild it.
	pending := make([]Event, 0, s.queue.Len())
	for s.queue.Len() > 0 {
		pending = append(pending, s.queue.Pop())
	}
	for _, evt := range pending {
		s.queue.Push(evt)
		st.Pending = append(st.Pending, PendingEventState{
			Time:      evt.Time,
			Sequence:  evt.Sequence,
			UserData:  evt.UserData,
			TypeIndex: s.registry.indexOf(evt.Type),
			TypeName:  evt.Type.Name(),
		})
	}

	return st
}

// Restore replaces the scheduler state with a previously captured
// State and republishes the downcount for the restored queue. Pending
// events whose type index or name does not match the live registry are
// dropped with a log message; firing them against the wrong callback
// would be worse than losing them.
func (s *Scheduler) Restore(st State) {
	if !s.initialized {
		log.Panic("restoring a scheduler that is not initialized")
	}

	s.clock.GlobalTimer = st.GlobalTimer
	s.clock.SpeedFactor = st.SpeedFactor
	s.clock.SliceFactor = st.SliceFactor
	s.nextSequence = st.NextSequence
	s.idleCycles = st.IdleCycles

	s.queue = NewEventQueue()
	s.inbox.reset()

	for _, pending := range st.Pending {
		typ := s.registry.at(pending.TypeIndex)
		if typ == nil || typ.Name() != pending.TypeName {
			log.Printf("dropping pending event %q: no matching registration",
				pending.TypeName)
			continue
		}

		s.queue.Push(Event{
			Time:     pending.Time,
			Sequence: pending.Sequence,
			UserData: pending.UserData,
			Type:     typ,
		})
	}

	s.clock.SliceLength = MaxSliceLength
	if s.queue.Len() > 0 {
		delta := s.queue.Peek().Time - s.clock.GlobalTimer
		if delta < MaxSliceLength {
			s.clock.SliceLength = delta
		}
	}
	if s.clock.SliceLength < 0 {
		s.clock.SliceLength = 0
	}
	s.clock.Downcount = s.clock.realCycles(s.clock.SliceLength)
}
