package conquest

import "time"

// EventType names a world notification.
type EventType string

const (
	EventOwnershipChanged EventType = "ownership_changed"
	EventTypeChanged      EventType = "type_changed"
	EventUnitCountChanged EventType = "unit_count_changed"
	EventUnitLaunched     EventType = "unit_launched"
	EventUnitArrived      EventType = "unit_arrived"
	EventUnitDestroyed    EventType = "unit_destroyed"
	EventPhaseChanged     EventType = "phase_changed"
)

// ChangeReason explains a TypeChanged event.
type ChangeReason string

const (
	ReasonUpgrade   ChangeReason = "upgrade"
	ReasonConvert   ChangeReason = "convert"
	ReasonDowngrade ChangeReason = "downgrade"
)

// Event is a side-effect notification emitted by the world. Fields not
// relevant to Type are zero.
type Event struct {
	Type      EventType     `json:"type"`
	Time      time.Duration `json:"time"`
	Construct ConstructID   `json:"construct,omitempty"`
	From      FactionID     `json:"from,omitempty"`
	To        FactionID     `json:"to,omitempty"`
	FromType  string        `json:"from_type,omitempty"`
	ToType    string        `json:"to_type,omitempty"`
	Reason    ChangeReason  `json:"reason,omitempty"`
	Count     int           `json:"count,omitempty"`
	Unit      UnitID        `json:"unit,omitempty"`
	Phase     Phase         `json:"phase,omitempty"`
}

// Listener receives events synchronously, on the goroutine stepping the world.
type Listener func(Event)

func (w *World) emit(e Event) {
	e.Time = w.sched.Now()
	for _, l := range w.listeners {
		l(e)
	}
}

// Subscribe registers a listener for every subsequent event.
func (w *World) Subscribe(l Listener) {
	w.listeners = append(w.listeners, l)
}
