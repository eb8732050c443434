package bot

import (
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// CascadeParams tunes CascadePolicy.
type CascadeParams struct {
	MinSource        int     // units a source needs before attacking
	DefendMargin     int     // extra units sent on top of the deficit
	AttackMargin     int     // advantage required over the target
	HouseTurretRatio int     // houses per turret before converting
	NeutralBonus     float64 // score multiplier for unclaimed targets
	ConsolidateAt    int
}

func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		MinSource:        15,
		DefendMargin:     5,
		AttackMargin:     8,
		HouseTurretRatio: 4,
		NeutralBonus:     1.5,
		ConsolidateAt:    50,
	}
}

// CascadePolicy tries defend, upgrade, convert, offense and consolidate in
// that order and takes the first that produces an action.
type CascadePolicy struct {
	p CascadeParams
}

func NewCascadePolicy(p CascadeParams) *CascadePolicy { return &CascadePolicy{p: p} }

func (*CascadePolicy) Name() string { return "cascade" }

func (*CascadePolicy) Cadence() Cadence {
	return Cadence{Interval: 750 * time.Millisecond, Grace: 2 * time.Second}
}

func (s *CascadePolicy) Decide(v *conquest.View, f conquest.FactionID) *Action {
	if len(v.Owned(f)) == 0 {
		return nil
	}
	return firstOf(
		func() *Action {
			return defendScan(v, f, s.p.DefendMargin, defendScore(10), nil)
		},
		func() *Action { return s.upgrade(v, f) },
		func() *Action { return s.convert(v, f) },
		func() *Action { return s.offense(v, f) },
		func() *Action { return consolidateScan(v, f, s.p.ConsolidateAt, 0.5, 1) },
	)
}

// upgrade picks the best production gain per unit spent among constructs
// not under attack.
func (s *CascadePolicy) upgrade(v *conquest.View, f conquest.FactionID) *Action {
	c, score := nodeScan(v.Owned(f), func(c *conquest.Construct) (float64, bool) {
		if !canUpgrade(c) || v.IncomingThreat(c) > 0 {
			return 0, false
		}
		gain := productionGain(c) * 100
		if gain <= 0 {
			gain = 1
		}
		return gain / upgradeCost(c), true
	})
	if c == nil {
		return nil
	}
	return upgradeAction(c, score)
}

// convert turns the house closest to the enemy into a turret while the
// faction has fewer than one turret per HouseTurretRatio houses. The last
// house is never converted.
func (s *CascadePolicy) convert(v *conquest.View, f conquest.FactionID) *Action {
	owned := v.Owned(f)
	houses, turrets := 0, 0
	for _, c := range owned {
		switch c.Type().Kind {
		case conquest.House:
			houses++
		case conquest.Turret:
			turrets++
		}
	}
	if houses < 2 || turrets*s.p.HouseTurretRatio >= houses {
		return nil
	}
	center, ok := enemyCenter(v, f)
	if !ok {
		return nil
	}
	cat := v.Catalog()
	c := conquest.Nearest(center, owned, func(c *conquest.Construct) bool {
		t := c.Type()
		if t.Kind != conquest.House || c.Busy() || c.UnitCount() < t.ConversionCost {
			return false
		}
		return turretConversion(cat, t) != ""
	})
	if c == nil {
		return nil
	}
	return &Action{Kind: ActionConvert, Score: 50, Source: c.ID(), ConvertTo: turretConversion(cat, c.Type())}
}

// turretConversion returns the first turret type t converts to, or "".
func turretConversion(cat *conquest.Catalog, t *conquest.TypeDef) string {
	for _, name := range t.Conversions {
		if def, ok := cat.Get(name); ok && def.Kind == conquest.Turret {
			return name
		}
	}
	return ""
}

func (s *CascadePolicy) offense(v *conquest.View, f conquest.FactionID) *Action {
	var srcs []*conquest.Construct
	for _, c := range v.Owned(f) {
		if c.UnitCount() >= s.p.MinSource {
			srcs = append(srcs, c)
		}
	}
	src, dst, score := pairScan(srcs, v.Hostile(f), func(src, dst *conquest.Construct, dist float64) (float64, bool) {
		t := dst.UnitCount()
		if src.UnitCount() <= t+s.p.AttackMargin {
			return 0, false
		}
		sc := 1000 / (safeDist(dist) * float64(t+1))
		if dst.IsNeutral() {
			sc *= s.p.NeutralBonus
		}
		return sc, true
	})
	if src == nil {
		return nil
	}
	return offenseAction(src, dst, score, s.p.AttackMargin)
}
