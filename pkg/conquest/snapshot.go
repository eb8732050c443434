package conquest

// Snapshot is a serializable picture of a world at one instant.
type Snapshot struct {
	Time       float64             `json:"time"`
	Phase      Phase               `json:"phase"`
	Factions   []FactionSummary    `json:"factions"`
	Constructs []ConstructSnapshot `json:"constructs"`
	Units      []Unit              `json:"units"`
}

// FactionSummary aggregates one faction's holdings.
type FactionSummary struct {
	Faction
	Constructs       int     `json:"constructs"`
	Units            int     `json:"units"`
	InFlight         int     `json:"in_flight"`
	Production       float64 `json:"production"`
	AttackMultiplier float64 `json:"attack_multiplier"`
}

// ConstructSnapshot is one construct's observable state.
type ConstructSnapshot struct {
	ID          ConstructID   `json:"id"`
	Position    Vec2          `json:"position"`
	Owner       FactionID     `json:"owner"`
	Type        string        `json:"type"`
	Kind        Kind          `json:"kind"`
	Units       int           `json:"units"`
	State       State         `json:"state"`
	PendingType string        `json:"pending_type,omitempty"`
	Streams     []ConstructID `json:"streams,omitempty"`
}

// Snapshot captures the world's current state.
func (w *World) Snapshot() Snapshot {
	v := w.View()
	s := Snapshot{
		Time:       w.Now().Seconds(),
		Phase:      w.phase,
		Constructs: make([]ConstructSnapshot, 0, len(w.constructs)),
		Units:      make([]Unit, 0, len(w.units)),
	}
	inFlight := make(map[FactionID]int)
	for _, u := range w.units {
		s.Units = append(s.Units, *u)
		inFlight[u.Owner]++
	}
	for _, f := range w.factions {
		s.Factions = append(s.Factions, FactionSummary{
			Faction:          f,
			Constructs:       len(v.Owned(f.ID)),
			Units:            v.UnitTotal(f.ID),
			InFlight:         inFlight[f.ID],
			Production:       v.ProductionTotal(f.ID),
			AttackMultiplier: v.AttackMultiplier(f.ID),
		})
	}
	for _, c := range w.constructs {
		cs := ConstructSnapshot{
			ID:       c.id,
			Position: c.pos,
			Owner:    c.owner,
			Type:     c.typ.Name,
			Kind:     c.typ.Kind,
			Units:    c.units,
			State:    c.state,
		}
		if c.pendingType != nil {
			cs.PendingType = c.pendingType.Name
		}
		if len(c.streams) > 0 {
			cs.Streams = c.InFlightTargets()
		}
		s.Constructs = append(s.Constructs, cs)
	}
	return s
}
