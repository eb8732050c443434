package bot

import (
	"math"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// Shared candidate generators. Each scans every legal source/target
// combination and returns its single best candidate, or nil. Scans run in
// registry order and only a strictly higher score replaces the incumbent,
// so the first candidate found wins ties.

// defendFloor is the lowest score a defense can have. bestOf clips every
// other kind of action below it.
const defendFloor = 1000.0

// defendScan finds the owned construct whose incoming threat exceeds its
// garrison and can be saved by a reinforcer holding more than
// deficit+margin units. The nearest such reinforcer sends exactly
// deficit+margin. Nodes are ranked by deficit, so a nearly lost construct
// comes before a well garrisoned one facing a bigger wave. When prefer is
// set, matching reinforcers are tried first.
func defendScan(v *conquest.View, f conquest.FactionID, margin int, score func(deficit int) float64, prefer func(*conquest.Construct) bool) *Action {
	owned := v.Owned(f)
	var best *Action
	for _, node := range owned {
		deficit := v.IncomingThreat(node) - node.UnitCount()
		if deficit <= 0 {
			continue
		}
		need := deficit + margin
		eligible := func(c *conquest.Construct) bool {
			return c != node && c.UnitCount() > need && !c.HasStreamTo(node.ID())
		}
		var r *conquest.Construct
		if prefer != nil {
			r = conquest.Nearest(node.Position(), owned, func(c *conquest.Construct) bool { return prefer(c) && eligible(c) })
		}
		if r == nil {
			r = conquest.Nearest(node.Position(), owned, eligible)
		}
		if r == nil {
			continue
		}
		s := math.Max(score(deficit), defendFloor)
		if best == nil || s > best.Score {
			best = &Action{Kind: ActionDefend, Score: s, Source: r.ID(), Target: node.ID(), Count: need}
		}
	}
	return best
}

// defendScore is the usual defense scoring: the floor plus perDeficit for
// every unit the construct is short.
func defendScore(perDeficit float64) func(int) float64 {
	return func(deficit int) float64 { return defendFloor + float64(deficit)*perDeficit }
}

// pairScorer scores sending from src to dst; ok=false rules the pair out.
type pairScorer func(src, dst *conquest.Construct, dist float64) (score float64, ok bool)

// pairScan returns the best scoring source/target pair.
func pairScan(srcs, dsts []*conquest.Construct, score pairScorer) (*conquest.Construct, *conquest.Construct, float64) {
	var bestSrc, bestDst *conquest.Construct
	best := math.Inf(-1)
	for _, s := range srcs {
		for _, d := range dsts {
			if s == d || s.HasStreamTo(d.ID()) {
				continue
			}
			sc, ok := score(s, d, s.Dist(d))
			if ok && sc > best {
				bestSrc, bestDst, best = s, d, sc
			}
		}
	}
	return bestSrc, bestDst, best
}

// nodeScan returns the best scoring construct.
func nodeScan(nodes []*conquest.Construct, score func(c *conquest.Construct) (float64, bool)) (*conquest.Construct, float64) {
	var bestNode *conquest.Construct
	best := math.Inf(-1)
	for _, c := range nodes {
		sc, ok := score(c)
		if ok && sc > best {
			bestNode, best = c, sc
		}
	}
	return bestNode, best
}

// transferKind labels a transfer by whether the target is neutral.
func transferKind(dst *conquest.Construct) ActionKind {
	if dst.IsNeutral() {
		return ActionExpand
	}
	return ActionAttack
}

// offenseAction builds an attack or expand that sends just enough units.
func offenseAction(src, dst *conquest.Construct, score float64, margin int) *Action {
	frac := clamp(float64(dst.UnitCount()+margin)/float64(src.UnitCount()), 0.1, 1)
	return &Action{Kind: transferKind(dst), Score: score, Source: src.ID(), Target: dst.ID(), Fraction: frac}
}

// canUpgrade reports whether c could start an upgrade right now.
func canUpgrade(c *conquest.Construct) bool {
	t := c.UpgradeTarget()
	return t != nil && !c.Busy() && c.UnitCount() >= c.Type().UpgradeCost
}

// productionGain is the units-per-second an upgrade adds.
func productionGain(c *conquest.Construct) float64 {
	t := c.UpgradeTarget()
	if t == nil {
		return 0
	}
	return t.ProductionPerSecond - c.Type().ProductionPerSecond
}

// upgradeCost never returns zero so it can be used as a divisor.
func upgradeCost(c *conquest.Construct) float64 {
	return math.Max(float64(c.Type().UpgradeCost), 1)
}

func upgradeAction(c *conquest.Construct, score float64) *Action {
	return &Action{Kind: ActionUpgrade, Score: score, Source: c.ID()}
}

// richest returns the construct with the most units, first on ties.
func richest(nodes []*conquest.Construct) *conquest.Construct {
	var best *conquest.Construct
	for _, c := range nodes {
		if best == nil || c.UnitCount() > best.UnitCount() {
			best = c
		}
	}
	return best
}

// weakest returns the construct with the fewest units, first on ties.
func weakest(nodes []*conquest.Construct) *conquest.Construct {
	var best *conquest.Construct
	for _, c := range nodes {
		if best == nil || c.UnitCount() < best.UnitCount() {
			best = c
		}
	}
	return best
}

// enemyCenter is the centroid of opposing factions' constructs, falling
// back to neutrals when no opponent remains.
func enemyCenter(v *conquest.View, f conquest.FactionID) (conquest.Vec2, bool) {
	if c, ok := conquest.FactionCenter(v.Enemies(f)); ok {
		return c, true
	}
	return conquest.FactionCenter(v.Neutrals())
}

// consolidateScan moves fraction of the richest construct's units toward
// the owned construct nearest the enemy. It needs at least minUnits.
func consolidateScan(v *conquest.View, f conquest.FactionID, minUnits int, fraction, score float64) *Action {
	owned := v.Owned(f)
	src := richest(owned)
	if src == nil || src.UnitCount() < minUnits {
		return nil
	}
	center, ok := enemyCenter(v, f)
	if !ok {
		return nil
	}
	dst := conquest.Nearest(center, owned, func(c *conquest.Construct) bool {
		return c != src && !src.HasStreamTo(c.ID())
	})
	if dst == nil {
		return nil
	}
	return &Action{Kind: ActionConsolidate, Score: score, Source: src.ID(), Target: dst.ID(), Fraction: fraction}
}

// safeDist keeps inverse-distance scores finite for overlapping constructs.
func safeDist(d float64) float64 { return math.Max(d, 0.1) }

func clamp(x, lo, hi float64) float64 { return math.Min(math.Max(x, lo), hi) }
