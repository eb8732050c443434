package bot

import (
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// CoordinatedParams tunes CoordinatedPolicy.
type CoordinatedParams struct {
	DefendMargin  int
	Reserve       int     // units each contributor keeps home
	Advantage     int     // pooled surplus must exceed target units by this
	SingleMargin  int     // single-source attack advantage
	NeutralBonus  float64 // single-source score multiplier for unclaimed targets
	SendFraction  float64
	ConsolidateAt int
}

func DefaultCoordinatedParams() CoordinatedParams {
	return CoordinatedParams{
		DefendMargin:  10,
		Reserve:       8,
		Advantage:     20,
		SingleMargin:  5,
		NeutralBonus:  2,
		SendFraction:  0.75,
		ConsolidateAt: 30,
	}
}

// CoordinatedPolicy pools surplus from several constructs to break a
// strong enemy construct no single source could take.
type CoordinatedPolicy struct {
	p CoordinatedParams
}

func NewCoordinatedPolicy(p CoordinatedParams) *CoordinatedPolicy {
	return &CoordinatedPolicy{p: p}
}

func (*CoordinatedPolicy) Name() string { return "coordinated" }

func (*CoordinatedPolicy) Cadence() Cadence {
	return Cadence{Interval: time.Second, Grace: 3 * time.Second}
}

func (s *CoordinatedPolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	if len(v.Owned(f)) == 0 {
		return nil
	}
	return firstOf(
		func() *Action {
			return defendScan(v, f, s.p.DefendMargin, defendScore(10), nil)
		},
		func() *Action { return s.coordinated(v, f) },
		func() *Action { return s.single(v, f) },
		func() *Action { return s.upgrade(v, f) },
		func() *Action { return consolidateScan(v, f, s.p.ConsolidateAt, 0.5, 1) },
	)
}

// coordinated looks for the strongest enemy construct whose garrison plus
// Advantage is exceeded by the pooled surplus of every owned construct
// above Reserve. Each contributor sends exactly its surplus.
func (s *CoordinatedPolicy) coordinated(v *conquest.View, f conquest.FactionID) *Action {
	owned := v.Owned(f)
	var best *Action
	bestUnits := -1
	for _, target := range v.Enemies(f) {
		var contrib []Contribution
		pool := 0
		for _, c := range conquest.SortByDistance(target.Position(), owned) {
			surplus := c.UnitCount() - s.p.Reserve
			if surplus <= 0 || c.HasStreamTo(target.ID()) {
				continue
			}
			contrib = append(contrib, Contribution{Source: c.ID(), Count: surplus})
			pool += surplus
		}
		if pool <= target.UnitCount()+s.p.Advantage {
			continue
		}
		if target.UnitCount() > bestUnits {
			bestUnits = target.UnitCount()
			best = &Action{
				Kind:          ActionCoordinatedAttack,
				Score:         float64(pool - target.UnitCount()),
				Target:        target.ID(),
				Contributions: contrib,
			}
		}
	}
	return best
}

func (s *CoordinatedPolicy) single(v *conquest.View, f conquest.FactionID) *Action {
	src, dst, score := pairScan(v.Owned(f), v.Hostile(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		t := dst.UnitCount()
		if src.UnitCount() <= t+s.p.SingleMargin {
			return 0, false
		}
		sc := 100 / (safeDist(dist) * float64(t+1))
		if dst.IsNeutral() {
			sc *= s.p.NeutralBonus
		}
		return sc, true
	})
	if src == nil {
		return nil
	}
	return &Action{Kind: transferKind(dst), Score: score, Source: src.ID(), Target: dst.ID(), Fraction: s.p.SendFraction}
}

// upgrade ranks safe constructs by production gained per unit spent.
func (s *CoordinatedPolicy) upgrade(v *conquest.View, f conquest.FactionID) *Action {
	c, score := nodeScan(v.Owned(f), func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) || v.IncomingThreat(c) > 0 {
			return 0, false
		}
		gain := productionGain(c)
		if gain <= 0 {
			gain = 0.1
		}
		return gain / upgradeCost(c), true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}
