package timing

import "log"

// EventLogger is a hook that prints every fired event.
type EventLogger struct {
	Logger *log.Logger
}

// NewEventLogger returns a new EventLogger that writes into the given
// logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Func writes the fired event's information into the logger.
func (l *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	l.Logger.Printf("%d, %s, userdata 0x%x, lateness %d",
		evt.Time, evt.Type.Name(), evt.UserData, ctx.Detail)
}
