package conquest

import (
	"math"
	"slices"
	"time"
)

// View is the read-side facade over a World used by decision makers. Every
// query enumerates the registry directly; maps have tens of constructs.
type View struct {
	w *World
}

// View returns a read-only view of the world.
func (w *World) View() *View { return &View{w: w} }

func (v *View) Now() time.Duration                  { return v.w.Now() }
func (v *View) Phase() Phase                        { return v.w.phase }
func (v *View) Catalog() *Catalog                   { return v.w.catalog }
func (v *View) Constructs() []*Construct            { return v.w.constructs }
func (v *View) Units() []*Unit                      { return v.w.units }
func (v *View) Construct(id ConstructID) *Construct { return v.w.byID[id] }

func (v *View) filter(keep func(*Construct) bool) []*Construct {
	var out []*Construct
	for _, c := range v.w.constructs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Owned returns the constructs owned by f.
func (v *View) Owned(f FactionID) []*Construct {
	return v.filter(func(c *Construct) bool { return c.owner == f })
}

// Enemies returns constructs owned by factions other than f and Unclaimed.
func (v *View) Enemies(f FactionID) []*Construct {
	return v.filter(func(c *Construct) bool { return c.owner != f && c.owner != UnclaimedID })
}

// Neutrals returns unclaimed constructs.
func (v *View) Neutrals() []*Construct {
	return v.filter(func(c *Construct) bool { return c.owner == UnclaimedID })
}

// Hostile returns every construct not owned by f, neutrals included.
func (v *View) Hostile(f FactionID) []*Construct {
	return v.filter(func(c *Construct) bool { return c.owner != f })
}

// Opponents returns factions other than f that still own a construct.
func (v *View) Opponents(f FactionID) []FactionID {
	var out []FactionID
	for _, c := range v.w.constructs {
		if c.owner == f || c.owner == UnclaimedID || slices.Contains(out, c.owner) {
			continue
		}
		out = append(out, c.owner)
	}
	return out
}

// IncomingThreat counts in-flight units targeting c that belong to anyone
// other than c's owner.
func (v *View) IncomingThreat(c *Construct) int {
	n := 0
	for _, u := range v.w.units {
		if u.To == c.id && u.Owner != c.owner {
			n++
		}
	}
	return n
}

// IncomingFriendly counts in-flight reinforcements headed to c.
func (v *View) IncomingFriendly(c *Construct) int {
	n := 0
	for _, u := range v.w.units {
		if u.To == c.id && u.Owner == c.owner {
			n++
		}
	}
	return n
}

// UnitTotal sums the garrisons of f's constructs.
func (v *View) UnitTotal(f FactionID) int {
	n := 0
	for _, c := range v.w.constructs {
		if c.owner == f {
			n += c.units
		}
	}
	return n
}

// ProductionTotal sums units per second over f's producer constructs.
func (v *View) ProductionTotal(f FactionID) float64 {
	p := 0.0
	for _, c := range v.w.constructs {
		if c.owner == f && c.typ.IsProducer() {
			p += c.typ.ProductionPerSecond
		}
	}
	return p
}

// Power is UnitTotal scaled by AttackMultiplier, plus weight times
// ProductionTotal. A Forge makes every unit f owns hit harder, so it counts.
func (v *View) Power(f FactionID, weight float64) float64 {
	return float64(v.UnitTotal(f))*v.AttackMultiplier(f) + weight*v.ProductionTotal(f)
}

// AttackMultiplier combines the damage bonus of every Forge f owns.
func (v *View) AttackMultiplier(f FactionID) float64 {
	m := 1.0
	for _, c := range v.w.constructs {
		if c.owner == f && c.typ.Kind == Forge && c.typ.Combat.DamageMultiplier > 0 {
			m *= c.typ.Combat.DamageMultiplier
		}
	}
	return m
}

// FactionCenter returns the mean position of cs.
func FactionCenter(cs []*Construct) (Vec2, bool) {
	if len(cs) == 0 {
		return Vec2{}, false
	}
	var sum Vec2
	for _, c := range cs {
		sum = sum.Add(c.pos)
	}
	return sum.Scale(1 / float64(len(cs))), true
}

// Nearest returns the construct closest to from that satisfies keep (nil
// keeps all). Ties go to the earlier construct.
func Nearest(from Vec2, cs []*Construct, keep func(*Construct) bool) *Construct {
	var best *Construct
	bestDist := math.MaxFloat64
	for _, c := range cs {
		if keep != nil && !keep(c) {
			continue
		}
		if d := c.pos.Dist(from); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// SortByDistance returns a copy of cs ordered by distance from from.
func SortByDistance(from Vec2, cs []*Construct) []*Construct {
	out := slices.Clone(cs)
	slices.SortStableFunc(out, func(a, b *Construct) int {
		da, db := a.pos.Dist(from), b.pos.Dist(from)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	return out
}
