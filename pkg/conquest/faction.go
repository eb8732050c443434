package conquest

// FactionID identifies a faction.
type FactionID string

// UnclaimedID is the owner of neutral, uncaptured constructs.
const UnclaimedID FactionID = "unclaimed"

// Faction is an owning entity for constructs and units. Immutable after creation.
type Faction struct {
	ID           FactionID `json:"id"`
	Name         string    `json:"name"`
	Color        string    `json:"color"`
	AIControlled bool      `json:"ai_controlled"`
}

// Unclaimed is the neutral sentinel faction.
var Unclaimed = Faction{ID: UnclaimedID, Name: "Unclaimed", Color: "#9e9e9e"}

// IsUnclaimed reports whether f is the neutral sentinel.
func (f Faction) IsUnclaimed() bool { return f.ID == UnclaimedID }
