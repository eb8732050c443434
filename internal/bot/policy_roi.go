package bot

import (
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// ROIParams tunes ROIPolicy.
type ROIParams struct {
	DefendMargin     int
	ExpandMinSource  int
	ExpandMargin     int
	EarlyWindow      time.Duration // expansion bonus decays from 3x to 1x over 2 windows
	AttackMinTotal   int
	AttackMinSource  int
	AttackMargin     int
	ConsolidateAt    int
	ConsolidateScore float64
}

func DefaultROIParams() ROIParams {
	return ROIParams{
		DefendMargin:     5,
		ExpandMinSource:  10,
		ExpandMargin:     5,
		EarlyWindow:      time.Minute,
		AttackMinTotal:   150,
		AttackMinSource:  30,
		AttackMargin:     10,
		ConsolidateAt:    40,
		ConsolidateScore: 5,
	}
}

// ROIPolicy is a global-utility policy that front-loads expansion and only
// turns on enemy factions once its army is large.
type ROIPolicy struct {
	p ROIParams
}

func NewROIPolicy(p ROIParams) *ROIPolicy { return &ROIPolicy{p: p} }

func (*ROIPolicy) Name() string { return "roi" }

func (*ROIPolicy) Cadence() Cadence {
	return Cadence{Interval: 500 * time.Millisecond, Grace: 2 * time.Second}
}

func (s *ROIPolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	if len(v.Owned(f)) == 0 {
		return nil
	}
	return bestOf(
		defendScan(v, f, s.p.DefendMargin, defendScore(20), nil),
		s.expand(v, f),
		s.attack(v, f),
		s.upgrade(v, f),
		consolidateScan(v, f, s.p.ConsolidateAt, 0.5, s.p.ConsolidateScore),
	)
}

// earlyBonus is 3 at match start and falls linearly to 1.
func (s *ROIPolicy) earlyBonus(now time.Duration) float64 {
	if s.p.EarlyWindow <= 0 {
		return 1
	}
	return clamp(3-float64(now)/float64(s.p.EarlyWindow), 1, 3)
}

func (s *ROIPolicy) expand(v *conquest.View, f conquest.FactionID) *Action {
	bonus := s.earlyBonus(v.Now())
	src, dst, score := pairScan(v.Owned(f), v.Neutrals(), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		t := dst.UnitCount()
		if src.UnitCount() <= s.p.ExpandMinSource || src.UnitCount() <= t+s.p.ExpandMargin {
			return 0, false
		}
		return 2000 / (safeDist(dist) * float64(t+1)) * bonus, true
	})
	if src == nil {
		return nil
	}
	return offenseAction(src, dst, score, s.p.ExpandMargin)
}

func (s *ROIPolicy) attack(v *conquest.View, f conquest.FactionID) *Action {
	if v.UnitTotal(f) < s.p.AttackMinTotal {
		return nil
	}
	src, dst, score := pairScan(v.Owned(f), v.Enemies(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		t := dst.UnitCount()
		if src.UnitCount() <= s.p.AttackMinSource || src.UnitCount() <= t+s.p.AttackMargin {
			return 0, false
		}
		return float64(50+t) / safeDist(dist), true
	})
	if src == nil {
		return nil
	}
	return offenseAction(src, dst, score, s.p.AttackMargin)
}

func (s *ROIPolicy) upgrade(v *conquest.View, f conquest.FactionID) *Action {
	c, score := nodeScan(v.Owned(f), func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) || v.IncomingThreat(c) > 0 {
			return 0, false
		}
		benefit := 10.0
		if gain := productionGain(c); gain > 0 {
			benefit = gain * 500
		}
		return benefit / upgradeCost(c), true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}
