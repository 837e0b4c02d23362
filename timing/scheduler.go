package timing

import (
	"log"
	"math"
)

// A Scheduler drives a hardware emulator's virtual clock. It keeps an
// ordered queue of deferred work (virtual-hardware interrupts,
// peripheral timers, sync points) and publishes a downcount: the
// number of real cycles the execution core may retire before it must
// call Advance. Scheduling from the core thread can shorten the
// current slice immediately; scheduling from any other thread goes
// through a staging inbox merged at the next Advance.
//
// Exactly one thread, the core thread, may call Advance, ScheduleEvent,
// SetSpeedFactor, Idle, Snapshot and Restore, and read the ClockState.
// Other threads are restricted to ScheduleEventFromThread with
// FromNonCoreThread.
type Scheduler struct {
	HookableBase

	clock    ClockState
	queue    EventQueue
	inbox    crossThreadInbox
	registry eventRegistry

	nextSequence uint64
	idleCycles   int64
	initialized  bool
}

// NewScheduler creates a Scheduler. Init must be called before any
// scheduling or advancing happens.
func NewScheduler() *Scheduler {
	s := new(Scheduler)
	s.queue = NewEventQueue()
	return s
}

// Clock returns the clock state shared with the execution core. The
// core decrements Downcount in place as it retires instructions.
func (s *Scheduler) Clock() *ClockState {
	return &s.clock
}

// RegisterEvent registers a callback under a diagnostic name and
// returns the handle used for all future scheduling of that kind of
// event. Every call returns a distinct handle, even under a repeated
// name. Handles stay valid until Shutdown; registration order matters
// to savestates, so register everything up front, in a fixed order.
func (s *Scheduler) RegisterEvent(name string, cb Callback) *EventType {
	return s.registry.register(name, cb)
}

// Init resets the virtual clock: timer at zero, native speed, empty
// queue and inbox, and a full slice published for the core to consume.
// Registered event types survive Init; only Shutdown releases them.
func (s *Scheduler) Init() {
	s.clock.GlobalTimer = 0
	s.clock.SpeedFactor = 1.0
	s.clock.SliceFactor = 1.0
	s.clock.SliceLength = MaxSliceLength
	s.clock.Downcount = s.clock.realCycles(MaxSliceLength)
	s.queue = NewEventQueue()
	s.inbox.reset()
	s.nextSequence = 0
	s.idleCycles = 0
	s.initialized = true
}

// Shutdown discards all pending and staged events and releases every
// registered event type. The scheduler is unusable until Init and
// re-registration.
func (s *Scheduler) Shutdown() {
	s.queue = NewEventQueue()
	s.inbox.reset()
	s.registry.reset()
	s.initialized = false
}

// SetSpeedFactor changes the speed factor. It takes effect immediately
// for new downcount computations; virtual time already granted to the
// core keeps converting at the slice snapshot. Core thread only.
func (s *Scheduler) SetSpeedFactor(f float64) {
	if f <= 0 || math.IsNaN(f) {
		log.Panic("speed factor must be positive")
	}
	s.clock.SpeedFactor = f
}

// SpeedFactor returns the current speed factor.
func (s *Scheduler) SpeedFactor() float64 {
	return s.clock.SpeedFactor
}

// ScheduleEvent schedules typ to fire offset virtual cycles from now.
// Core thread only; use ScheduleEventFromThread elsewhere. A zero or
// negative offset is legal and means the event is already overdue: it
// fires on the next Advance, and the published downcount is clamped at
// zero rather than going negative.
func (s *Scheduler) ScheduleEvent(offset int64, typ *EventType, userdata uint64) {
	s.ScheduleEventFromThread(offset, typ, userdata, FromCoreThread)
}

// ScheduleEventFromThread schedules typ to fire offset virtual cycles
// from now, taking the submission path selected by from. The non-core
// path only stages the request; its trigger time is computed against
// the global timer at merge time, inside the next Advance.
func (s *Scheduler) ScheduleEventFromThread(
	offset int64,
	typ *EventType,
	userdata uint64,
	from FromThread,
) {
	if typ == nil {
		log.Panic("scheduling a nil event type")
	}

	if from == FromNonCoreThread {
		s.inbox.stage(offset, typ, userdata)
		return
	}

	if !s.initialized {
		log.Panic("scheduling on a scheduler that is not initialized")
	}

	s.queue.Push(Event{
		Time:     s.clock.GlobalTimer + offset,
		Sequence: s.nextSequence,
		UserData: userdata,
		Type:     typ,
	})
	s.nextSequence++

	s.shortenSlice(offset)
}

// shortenSlice lowers the published downcount when a freshly scheduled
// event lands before the end of the current slice. The new downcount
// uses the current speed factor, so a factor change shows up on the
// very next scheduling decision even mid-slice. SliceLength shrinks by
// the matching virtual amount to keep the executed-cycle accounting in
// Advance exact. Scheduling never raises the downcount; while a drain
// is in progress the downcount is at or below zero and stays put.
func (s *Scheduler) shortenSlice(offset int64) {
	needed := s.clock.realCycles(offset)
	if needed < 0 {
		needed = 0
	}
	if needed >= s.clock.Downcount {
		return
	}

	s.clock.SliceLength -= s.clock.virtualCycles(s.clock.Downcount) -
		s.clock.virtualCycles(needed)
	// Under a fractional factor the downcount round trip can exceed
	// SliceLength by one cycle; the shrink must not push SliceLength
	// below the virtual time still covered by the new downcount.
	if floor := s.clock.virtualCycles(needed); s.clock.SliceLength < floor {
		s.clock.SliceLength = floor
	}
	s.clock.Downcount = needed
}

// Advance settles the slice the core just executed and publishes the
// next one. It converts the real cycles consumed back into virtual
// time at the slice snapshot, merges cross-thread submissions, fires
// every due event and hands each callback its lateness. A callback
// that schedules more immediately-due work extends the same drain; a
// callback that reschedules itself with a non-positive offset forever
// is a caller bug this loop does not detect.
//
// The core must call Advance whenever its downcount reaches zero or
// below. Overrunning the downcount is normal; the overrun becomes
// positive lateness on whatever fires next.
func (s *Scheduler) Advance() {
	if !s.initialized {
		log.Panic("advancing a scheduler that is not initialized")
	}

	clk := &s.clock

	executed := clk.SliceLength - clk.virtualCycles(clk.Downcount)
	if executed < 0 {
		// Real-domain rounding of the published downcount can
		// overshoot SliceLength by one virtual cycle. The timer never
		// moves backwards.
		executed = 0
	}
	clk.GlobalTimer += executed

	s.moveEvents()

	for s.queue.Len() > 0 && s.queue.Peek().Time <= clk.GlobalTimer {
		evt := s.queue.Pop()
		lateness := clk.GlobalTimer - evt.Time

		ctx := HookCtx{
			Domain: s,
			Pos:    HookPosBeforeEvent,
			Item:   evt,
			Detail: lateness,
		}
		s.InvokeHook(ctx)

		evt.Type.callback(evt.UserData, lateness)

		ctx.Pos = HookPosAfterEvent
		s.InvokeHook(ctx)
	}

	// One snapshot per advance, taken after the drain: a factor change
	// made by a callback governs the next slice, never the lateness of
	// events already being drained.
	clk.SliceFactor = clk.SpeedFactor

	clk.SliceLength = MaxSliceLength
	if s.queue.Len() > 0 {
		delta := s.queue.Peek().Time - clk.GlobalTimer
		if delta < MaxSliceLength {
			clk.SliceLength = delta
		}
	}
	clk.Downcount = clk.realCycles(clk.SliceLength)
}

// moveEvents merges the cross-thread inbox into the event queue,
// assigning fresh sequence numbers in submission order. Trigger times
// are relative to the timer as of this merge.
func (s *Scheduler) moveEvents() {
	s.inbox.drain(func(entry inboxEntry) {
		s.queue.Push(Event{
			Time:     s.clock.GlobalTimer + entry.offset,
			Sequence: s.nextSequence,
			UserData: entry.userdata,
			Type:     entry.typ,
		})
		s.nextSequence++
	})
}

// Idle gives up the remainder of the current slice, forcing the next
// Advance. The skipped cycles are accounted separately so pacing code
// can tell busy virtual time from idle-skipped virtual time.
func (s *Scheduler) Idle() {
	s.idleCycles += s.clock.virtualCycles(s.clock.Downcount)
	s.clock.Downcount = 0
}

// GetTicks returns the current virtual timer. Reading it from any
// thread but the core thread yields a possibly stale value; schedule
// through FromNonCoreThread instead of doing timer math elsewhere.
func (s *Scheduler) GetTicks() int64 {
	return s.clock.GlobalTimer
}

// GetIdleTicks returns the number of virtual cycles skipped by Idle.
func (s *Scheduler) GetIdleTicks() int64 {
	return s.idleCycles
}

// PendingEvents returns the number of queued events. Like GetTicks, it
// is only exact on the core thread; elsewhere it is a diagnostic
// sample.
func (s *Scheduler) PendingEvents() int {
	return s.queue.Len()
}

// NearestDeadline returns the trigger time of the next queued event.
// ok is false when the queue is empty. Same thread caveat as GetTicks.
func (s *Scheduler) NearestDeadline() (deadline int64, ok bool) {
	if s.queue.Len() == 0 {
		return 0, false
	}
	return s.queue.Peek().Time, true
}
