package bot

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// Cadence is how often a policy is consulted. The first decision runs
// after Grace, then once per Interval.
type Cadence struct {
	Interval time.Duration
	Grace    time.Duration
}

// Policy picks at most one action per decision tick for a faction.
// Decide must not mutate the world; a nil action means stay idle.
type Policy interface {
	Name() string
	Cadence() Cadence
	Decide(v *conquest.View, f conquest.FactionID) *Action
}

// IdlePolicy never acts. Arenas seat it as a passive sparring target.
type IdlePolicy struct{}

func (IdlePolicy) Name() string                                      { return "idle" }
func (IdlePolicy) Cadence() Cadence                                  { return Cadence{Interval: time.Second, Grace: time.Second} }
func (IdlePolicy) Decide(*conquest.View, conquest.FactionID) *Action { return nil }

var policyAliases = map[string]string{
	"":       "utility",
	"easy":   "cascade",
	"medium": "momentum",
	"hard":   "coordinated",
}

var policyFactories = map[string]func() Policy{
	"cascade":     func() Policy { return NewCascadePolicy(DefaultCascadeParams()) },
	"utility":     func() Policy { return NewUtilityPolicy(DefaultUtilityParams()) },
	"coordinated": func() Policy { return NewCoordinatedPolicy(DefaultCoordinatedParams()) },
	"roi":         func() Policy { return NewROIPolicy(DefaultROIParams()) },
	"momentum":    func() Policy { return NewMomentumPolicy(DefaultMomentumParams()) },
	"warlord":     func() Policy { return NewWarlordPolicy(DefaultWarlordParams()) },
	"idle":        func() Policy { return IdlePolicy{} },
}

// KnownPolicy reports whether name (or a difficulty alias) selects a policy.
func KnownPolicy(name string) bool {
	if alias, ok := policyAliases[name]; ok {
		name = alias
	}
	_, ok := policyFactories[name]
	return ok
}

// PolicyNames lists every selectable policy name, aliases excluded.
func PolicyNames() []string {
	names := make([]string, 0, len(policyFactories))
	for n := range policyFactories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PolicyForName returns a fresh policy for a name or difficulty level.
// Unknown names fall back to the utility policy.
func PolicyForName(name string) Policy {
	resolved := name
	if alias, ok := policyAliases[name]; ok {
		resolved = alias
	}
	if f, ok := policyFactories[resolved]; ok {
		return f()
	}
	log.Warn().Str("policy", name).Msg("bot: unknown policy, falling back to utility")
	return policyFactories["utility"]()
}

// bestOf returns the highest scoring non-nil action. Anything but a
// defense is clipped to just under defendFloor first, so a viable defense
// always wins. Earlier entries win ties.
func bestOf(cands ...*Action) *Action {
	var best *Action
	for _, a := range cands {
		if a == nil {
			continue
		}
		if a.Kind != ActionDefend && a.Score >= defendFloor {
			a.Score = defendFloor - 1
		}
		if best == nil || a.Score > best.Score {
			best = a
		}
	}
	return best
}

// firstOf returns the first generator result that is non-nil.
func firstOf(gens ...func() *Action) *Action {
	for _, g := range gens {
		if a := g(); a != nil {
			return a
		}
	}
	return nil
}
