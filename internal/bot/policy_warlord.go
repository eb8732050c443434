package bot

import (
	"math"
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// Role is a construct's job in WarlordPolicy.
type Role string

const (
	RoleFrontline Role = "frontline"
	RoleSupport   Role = "support"
	RoleEconomic  Role = "economic"
)

// WarlordParams tunes WarlordPolicy.
type WarlordParams struct {
	FrontlineShare    float64
	SupportShare      float64
	DefendMargin      int
	AttackMinSource   int
	AttackMargin      int
	LogisticsMinUnits int
}

func DefaultWarlordParams() WarlordParams {
	return WarlordParams{
		FrontlineShare:    0.3,
		SupportShare:      0.4,
		DefendMargin:      5,
		AttackMinSource:   25,
		AttackMargin:      10,
		LogisticsMinUnits: 40,
	}
}

// WarlordPolicy splits constructs into roles by distance to the enemy. The
// frontline defends and attacks, the economy upgrades and logistics feeds
// the front.
type WarlordPolicy struct {
	p WarlordParams
}

func NewWarlordPolicy(p WarlordParams) *WarlordPolicy { return &WarlordPolicy{p: p} }

func (*WarlordPolicy) Name() string { return "warlord" }

func (*WarlordPolicy) Cadence() Cadence {
	return Cadence{Interval: 600 * time.Millisecond, Grace: 2 * time.Second}
}

// Roles assigns every owned construct a role. The nearest FrontlineShare
// (at least one) is frontline, the next SupportShare support and the rest
// economic. Without any enemy or neutral left everything is economic.
func (s *WarlordPolicy) Roles(v *conquest.View, f conquest.FactionID) map[conquest.ConstructID]Role {
	owned := v.Owned(f)
	roles := make(map[conquest.ConstructID]Role, len(owned))
	center, ok := enemyCenter(v, f)
	if !ok {
		for _, c := range owned {
			roles[c.ID()] = RoleEconomic
		}
		return roles
	}
	n := len(owned)
	front := max(1, int(math.Round(float64(n)*s.p.FrontlineShare)))
	support := int(math.Round(float64(n) * s.p.SupportShare))
	for i, c := range conquest.SortByDistance(center, owned) {
		switch {
		case i < front:
			roles[c.ID()] = RoleFrontline
		case i < front+support:
			roles[c.ID()] = RoleSupport
		default:
			roles[c.ID()] = RoleEconomic
		}
	}
	return roles
}

func (s *WarlordPolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	owned := v.Owned(f)
	if len(owned) == 0 {
		return nil
	}
	roles := s.Roles(v, f)
	byRole := func(keep ...Role) []*conquest.Construct {
		var out []*conquest.Construct
		for _, c := range owned {
			for _, r := range keep {
				if roles[c.ID()] == r {
					out = append(out, c)
					break
				}
			}
		}
		return out
	}
	isFront := func(c *conquest.Construct) bool { return roles[c.ID()] == RoleFrontline }

	return firstOf(
		func() *Action {
			return defendScan(v, f, s.p.DefendMargin, defendScore(10), isFront)
		},
		func() *Action { return s.offense(v, f, byRole(RoleFrontline)) },
		func() *Action {
			if eco := byRole(RoleEconomic); len(eco) > 0 {
				return s.upgrade(eco)
			}
			return s.upgrade(byRole(RoleSupport))
		},
		func() *Action { return s.logistics(byRole(RoleEconomic, RoleSupport), byRole(RoleFrontline)) },
	)
}

// offense prefers neutral targets, then the nearest.
func (s *WarlordPolicy) offense(v *conquest.View, f conquest.FactionID, front []*conquest.Construct) *Action {
	src, dst, score := pairScan(front, v.Hostile(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		if src.UnitCount() <= s.p.AttackMinSource || src.UnitCount() <= dst.UnitCount()+s.p.AttackMargin {
			return 0, false
		}
		sc := -dist
		if dst.IsNeutral() {
			sc += 1e6
		}
		return sc, true
	})
	if src == nil {
		return nil
	}
	return &Action{Kind: transferKind(dst), Score: score, Source: src.ID(), Target: dst.ID(), Fraction: 0.75}
}

func (s *WarlordPolicy) upgrade(nodes []*conquest.Construct) *Action {
	c, score := nodeScan(nodes, func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) {
			return 0, false
		}
		return (productionGain(c) + 0.01) / upgradeCost(c), true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}

// logistics sends half of a rich rear construct to the weakest frontline.
func (s *WarlordPolicy) logistics(rear, front []*conquest.Construct) *Action {
	dst := weakest(front)
	if dst == nil {
		return nil
	}
	src, _ := nodeScan(rear, func(c *conquest.Construct) (float64, bool) {
		if c.UnitCount() <= s.p.LogisticsMinUnits || c.HasStreamTo(dst.ID()) {
			return 0, false
		}
		return float64(c.UnitCount()), true
	})
	if src == nil {
		return nil
	}
	return &Action{Kind: ActionConsolidate, Score: 1, Source: src.ID(), Target: dst.ID(), Fraction: 0.5}
}
