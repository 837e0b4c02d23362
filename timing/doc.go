// Package timing implements the cycle-accurate event scheduler that
// drives a hardware emulator's virtual clock. An execution core
// decrements a published downcount while retiring instructions; when
// the downcount reaches zero or below, the core re-enters the
// scheduler, which settles the elapsed virtual time, fires every due
// event, and publishes the next slice. A configurable speed factor
// converts between the virtual cycle domain and the core's real cycle
// domain, and a lock-protected inbox lets other threads schedule work
// without touching the core thread's state.
package timing
