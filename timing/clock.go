package timing

import "math"

// MaxSliceLength bounds how many virtual cycles the core may run
// without re-entering the scheduler, even when nothing is scheduled.
// It caps interrupt and timer latency for work submitted from other
// threads.
const MaxSliceLength = 20000

// ClockState is the clock state shared between a Scheduler and its
// execution core. The scheduler publishes Downcount into it and the
// core decrements Downcount directly while retiring instructions; once
// Downcount reaches zero or below the core must call Advance before
// continuing. Every field is owned by the core thread.
//
// GlobalTimer and SliceLength are in the virtual cycle domain;
// Downcount is in the real domain. The two domains are related by the
// speed factor: real = virtual * factor.
type ClockState struct {
	// GlobalTimer is the number of virtual cycles elapsed since Init.
	// It never decreases.
	GlobalTimer int64

	// Downcount is the number of real cycles left in the current
	// slice. It may transiently go negative while the core overruns
	// its allotment; the overrun surfaces as callback lateness, not as
	// an error.
	Downcount int64

	// SliceLength is the length of the current slice in virtual
	// cycles.
	SliceLength int64

	// SpeedFactor converts virtual cycles into real cycles. 1.0 runs
	// the virtual clock at native speed, 2.0 gives the core twice the
	// real cycles for the same virtual span. Always positive.
	SpeedFactor float64

	// SliceFactor is the SpeedFactor snapshot captured when the
	// current slice was published. Real cycles consumed during the
	// slice convert back into virtual cycles with this value, so a
	// mid-slice factor change never retroactively distorts how much
	// virtual time has elapsed.
	SliceFactor float64
}

// realCycles converts virtual cycles into real cycles at the current
// speed factor.
func (c *ClockState) realCycles(virtual int64) int64 {
	return int64(math.Round(float64(virtual) * c.SpeedFactor))
}

// virtualCycles converts real cycles back into virtual cycles at the
// factor that governed the slice.
func (c *ClockState) virtualCycles(real int64) int64 {
	return int64(math.Round(float64(real) / c.SliceFactor))
}
