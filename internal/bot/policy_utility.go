package bot

import (
	"math"
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// UtilityParams tunes UtilityPolicy.
type UtilityParams struct {
	DefendMargin     int
	DefendPerDeficit float64
	AttackMinSource  int
	AttackAdvantage  int
	NeutralBonus     float64
	UpgradeMinTotal  int
	ConsolidateAt    int
	ConsolidateScore float64
}

func DefaultUtilityParams() UtilityParams {
	return UtilityParams{
		DefendMargin:     5,
		DefendPerDeficit: 10,
		AttackMinSource:  10,
		AttackAdvantage:  5,
		NeutralBonus:     1.5,
		UpgradeMinTotal:  80,
		ConsolidateAt:    40,
		ConsolidateScore: 5,
	}
}

// UtilityPolicy scores the best candidate of every kind and plays the
// overall maximum. A viable defense always outranks everything else.
type UtilityPolicy struct {
	p UtilityParams
}

func NewUtilityPolicy(p UtilityParams) *UtilityPolicy { return &UtilityPolicy{p: p} }

func (*UtilityPolicy) Name() string { return "utility" }

func (*UtilityPolicy) Cadence() Cadence {
	return Cadence{Interval: 800 * time.Millisecond, Grace: 2500 * time.Millisecond}
}

func (s *UtilityPolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	if len(v.Owned(f)) == 0 {
		return nil
	}
	return bestOf(
		defendScan(v, f, s.p.DefendMargin, defendScore(s.p.DefendPerDeficit), nil),
		s.attack(v, f),
		s.upgrade(v, f),
		consolidateScan(v, f, s.p.ConsolidateAt, 0.5, s.p.ConsolidateScore),
	)
}

// targetValue weighs a construct by what owning it yields.
func targetValue(c *conquest.Construct) float64 {
	return 1 + c.Type().ProductionPerSecond
}

func (s *UtilityPolicy) attack(v *conquest.View, f conquest.FactionID) *Action {
	var srcs []*conquest.Construct
	for _, c := range v.Owned(f) {
		if c.UnitCount() > s.p.AttackMinSource {
			srcs = append(srcs, c)
		}
	}
	src, dst, score := pairScan(srcs, v.Hostile(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		adv := src.UnitCount() - dst.UnitCount()
		if adv <= s.p.AttackAdvantage {
			return 0, false
		}
		sc := float64(adv) * targetValue(dst) * 10 / math.Max(1, dist)
		if dst.IsNeutral() {
			sc *= s.p.NeutralBonus
		}
		return sc, true
	})
	if src == nil {
		return nil
	}
	return offenseAction(src, dst, score, s.p.AttackAdvantage)
}

func (s *UtilityPolicy) upgrade(v *conquest.View, f conquest.FactionID) *Action {
	if v.UnitTotal(f) < s.p.UpgradeMinTotal {
		return nil
	}
	c, score := nodeScan(v.Owned(f), func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) {
			return 0, false
		}
		return (1 + productionGain(c)*100) * 20 / upgradeCost(c), true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}
