package bot

import (
	"math"
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// Momentum classifies a faction's standing against its strongest opponent.
type Momentum string

const (
	MomentumWinning Momentum = "winning"
	MomentumLosing  Momentum = "losing"
	MomentumEven    Momentum = "even"
)

// MomentumParams tunes MomentumPolicy.
type MomentumParams struct {
	ProductionWeight float64 // weight of production in power
	Band             float64 // power ratio outside 1±Band flips the state
	DefendMargin     int
	AttackMinSource  int
	AttackMargin     int
	EvenAttackMargin int
	ExpandMinSource  int
	ExpandMargin     int
	ConsolidateAt    int
}

func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		ProductionWeight: 20,
		Band:             0.4,
		DefendMargin:     5,
		AttackMinSource:  15,
		AttackMargin:     5,
		EvenAttackMargin: 15,
		ExpandMinSource:  10,
		ExpandMargin:     3,
		ConsolidateAt:    30,
	}
}

// MomentumPolicy is a cascade whose order depends on whether the faction
// is ahead, behind or level with its strongest opponent.
type MomentumPolicy struct {
	p MomentumParams
}

func NewMomentumPolicy(p MomentumParams) *MomentumPolicy { return &MomentumPolicy{p: p} }

func (*MomentumPolicy) Name() string { return "momentum" }

func (*MomentumPolicy) Cadence() Cadence {
	return Cadence{Interval: 750 * time.Millisecond, Grace: 2500 * time.Millisecond}
}

// Assess compares f's power with the opponent holding the most units. A
// faction with no opponents left is winning.
func (s *MomentumPolicy) Assess(v *conquest.View, f conquest.FactionID) Momentum {
	var strongest conquest.FactionID
	most := -1
	for _, o := range v.Opponents(f) {
		if n := v.UnitTotal(o); n > most {
			strongest, most = o, n
		}
	}
	if most < 0 {
		return MomentumWinning
	}
	mine := v.Power(f, s.p.ProductionWeight)
	theirs := v.Power(strongest, s.p.ProductionWeight)
	if theirs <= 0 {
		return MomentumWinning
	}
	switch ratio := mine / theirs; {
	case ratio >= 1+s.p.Band:
		return MomentumWinning
	case ratio <= 1-s.p.Band:
		return MomentumLosing
	}
	return MomentumEven
}

func (s *MomentumPolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	if len(v.Owned(f)) == 0 {
		return nil
	}
	if a := defendScan(v, f, s.p.DefendMargin, defendScore(10), nil); a != nil {
		return a
	}
	attack := func() *Action { return s.attack(v, f, s.p.AttackMargin) }
	expand := func() *Action { return s.expand(v, f) }
	upgrade := func() *Action { return s.upgrade(v, f) }

	switch s.Assess(v, f) {
	case MomentumWinning:
		return firstOf(attack, expand, upgrade)
	case MomentumLosing:
		return firstOf(func() *Action { return s.fortify(v, f) }, upgrade, expand)
	}
	return firstOf(expand, upgrade,
		func() *Action { return s.attack(v, f, s.p.EvenAttackMargin) },
		func() *Action { return consolidateScan(v, f, s.p.ConsolidateAt, 0.5, 1) },
	)
}

// attack sends 75% from any strong source to its nearest beatable enemy.
func (s *MomentumPolicy) attack(v *conquest.View, f conquest.FactionID, margin int) *Action {
	src, dst, score := pairScan(v.Owned(f), v.Enemies(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		if src.UnitCount() <= dst.UnitCount()+margin || src.UnitCount() <= s.p.AttackMinSource {
			return 0, false
		}
		return -dist, true
	})
	if src == nil {
		return nil
	}
	return &Action{Kind: ActionAttack, Score: score, Source: src.ID(), Target: dst.ID(), Fraction: 0.75}
}

// expand takes the weakest neutral first, then the nearest.
func (s *MomentumPolicy) expand(v *conquest.View, f conquest.FactionID) *Action {
	src, dst, score := pairScan(v.Owned(f), v.Neutrals(), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		t := dst.UnitCount()
		if src.UnitCount() <= s.p.ExpandMinSource || src.UnitCount() <= t+s.p.ExpandMargin {
			return 0, false
		}
		return -float64(t)*1e6 - dist, true
	})
	if src == nil {
		return nil
	}
	return &Action{Kind: ActionExpand, Score: score, Source: src.ID(), Target: dst.ID(), Fraction: 0.5}
}

// upgrade prefers houses, then the cheapest upgrade.
func (s *MomentumPolicy) upgrade(v *conquest.View, f conquest.FactionID) *Action {
	c, score := nodeScan(v.Owned(f), func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) {
			return 0, false
		}
		sc := -upgradeCost(c)
		if c.Type().Kind == conquest.House {
			sc += 1e6
		}
		return sc, true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}

// fortify moves half of the richest construct into the weakest one.
func (s *MomentumPolicy) fortify(v *conquest.View, f conquest.FactionID) *Action {
	owned := v.Owned(f)
	src, dst := richest(owned), weakest(owned)
	if src == nil || src == dst || src.UnitCount() < s.p.ConsolidateAt || src.HasStreamTo(dst.ID()) {
		return nil
	}
	return &Action{Kind: ActionConsolidate, Score: math.Max(1, float64(src.UnitCount()-dst.UnitCount())), Source: src.ID(), Target: dst.ID(), Fraction: 0.5}
}
