package timing

// eventRegistry stores the event types registered on a scheduler, in
// registration order. Registration order is part of the determinism
// contract: savestates refer to event types by their position here.
type eventRegistry struct {
	types []*EventType
}

func (r *eventRegistry) register(name string, cb Callback) *EventType {
	t := &EventType{name: name, callback: cb}
	r.types = append(r.types, t)
	return t
}

// indexOf returns the registration index of t, or -1 if t does not
// belong to this registry.
func (r *eventRegistry) indexOf(t *EventType) int {
	for i, registered := range r.types {
		if registered == t {
			return i
		}
	}
	return -1
}

// at returns the event type with the given registration index, or nil.
func (r *eventRegistry) at(index int) *EventType {
	if index < 0 || index >= len(r.types) {
		return nil
	}
	return r.types[index]
}

func (r *eventRegistry) reset() {
	r.types = nil
}
