package conquest

import (
	"math"
	"time"
)

func (w *World) runPassives(dt time.Duration) {
	for _, c := range w.constructs {
		if c.owner == UnclaimedID || c.state != StateIdle {
			continue
		}
		switch c.typ.Kind {
		case Turret:
			w.turretFire(c, dt)
		case Mortar:
			w.mortarFire(c, dt)
		}
	}
}

// turretFire shoots down hostile in-flight units within range. A turret's
// own unit count is never touched.
func (w *World) turretFire(c *Construct, dt time.Duration) {
	cb := c.typ.Combat
	if cb.FireRate <= 0 || cb.Range <= 0 {
		return
	}
	c.shots += cb.FireRate * dt.Seconds()
	for c.shots >= 1 {
		target := w.nearestHostileUnit(c, cb.Range)
		if target == nil {
			// stay loaded for the next unit to come into range
			c.shots = 1
			return
		}
		c.shots--
		w.removeUnit(target.ID)
		w.emit(Event{Type: EventUnitDestroyed, Construct: c.id, From: target.Owner, Unit: target.ID})
	}
}

func (w *World) nearestHostileUnit(c *Construct, rng float64) *Unit {
	var best *Unit
	bestDist := math.MaxFloat64
	for _, u := range w.units {
		if u.Owner == c.owner {
			continue
		}
		d := u.Position.Dist(c.pos)
		if d <= rng && d < bestDist {
			best, bestDist = u, d
		}
	}
	return best
}

// mortarFire strikes the nearest enemy construct in range once reloaded,
// killing a fraction of its garrison and possibly downgrading it.
func (w *World) mortarFire(c *Construct, dt time.Duration) {
	cb := c.typ.Combat
	if cb.Range <= 0 {
		return
	}
	c.reload += dt
	if c.reload < cb.Reload {
		return
	}
	var target *Construct
	bestDist := math.MaxFloat64
	for _, o := range w.constructs {
		if o.owner == c.owner || o.owner == UnclaimedID {
			continue
		}
		if d := o.Dist(c); d <= cb.Range && d < bestDist {
			target, bestDist = o, d
		}
	}
	if target == nil {
		c.reload = cb.Reload
		return
	}
	c.reload = 0

	kills := int(math.Floor(float64(target.units) * cb.KillFraction))
	if kills > 0 {
		target.units -= kills
		target.emitCount()
	}
	downgraded := false
	if cb.DowngradeChance > 0 && w.rng.Float64() < cb.DowngradeChance {
		downgraded = target.downgrade()
	}
	w.log.Debug().
		Str("mortar", string(c.id)).
		Str("target", string(target.id)).
		Int("kills", kills).
		Bool("downgraded", downgraded).
		Msg("Mortar strike")
}
