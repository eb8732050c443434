package bot

import (
	"errors"
	"fmt"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// ActionKind tags what an Action does.
type ActionKind string

const (
	ActionDefend            ActionKind = "defend"
	ActionAttack            ActionKind = "attack"
	ActionExpand            ActionKind = "expand"
	ActionUpgrade           ActionKind = "upgrade"
	ActionConvert           ActionKind = "convert"
	ActionConsolidate       ActionKind = "consolidate"
	ActionCoordinatedAttack ActionKind = "coordinated_attack"
)

// Contribution is one source's share of a coordinated attack.
type Contribution struct {
	Source conquest.ConstructID `json:"source"`
	Count  int                  `json:"count"`
}

// Action is a policy's chosen command for one decision tick. Transfers use
// Count when positive, otherwise Fraction.
type Action struct {
	Kind          ActionKind           `json:"kind"`
	Score         float64              `json:"score"`
	Source        conquest.ConstructID `json:"source,omitempty"`
	Target        conquest.ConstructID `json:"target,omitempty"`
	Fraction      float64              `json:"fraction,omitempty"`
	Count         int                  `json:"count,omitempty"`
	ConvertTo     string               `json:"convert_to,omitempty"`
	Contributions []Contribution       `json:"contributions,omitempty"`
}

func (a *Action) String() string {
	switch a.Kind {
	case ActionUpgrade:
		return fmt.Sprintf("upgrade %s (%.2f)", a.Source, a.Score)
	case ActionConvert:
		return fmt.Sprintf("convert %s -> %s (%.2f)", a.Source, a.ConvertTo, a.Score)
	case ActionCoordinatedAttack:
		return fmt.Sprintf("coordinated attack on %s from %d sources (%.2f)", a.Target, len(a.Contributions), a.Score)
	}
	amount := fmt.Sprintf("%.0f%%", a.Fraction*100)
	if a.Count > 0 {
		amount = fmt.Sprintf("%d", a.Count)
	}
	return fmt.Sprintf("%s %s -> %s x%s (%.2f)", a.Kind, a.Source, a.Target, amount, a.Score)
}

var errUnknownAction = errors.New("unknown action kind")

// Execute issues the action's commands against w and returns how many were
// accepted. A coordinated attack succeeds if any contributor was accepted.
func (a *Action) Execute(w *conquest.World) (int, error) {
	switch a.Kind {
	case ActionUpgrade:
		src := w.Construct(a.Source)
		if src == nil {
			return 0, conquest.ErrUnknownConstruct
		}
		if err := src.Upgrade(); err != nil {
			return 0, err
		}
		return 1, nil

	case ActionConvert:
		src := w.Construct(a.Source)
		if src == nil {
			return 0, conquest.ErrUnknownConstruct
		}
		if err := src.Convert(a.ConvertTo); err != nil {
			return 0, err
		}
		return 1, nil

	case ActionCoordinatedAttack:
		dst := w.Construct(a.Target)
		var errs []error
		accepted := 0
		for _, c := range a.Contributions {
			src := w.Construct(c.Source)
			if src == nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Source, conquest.ErrUnknownConstruct))
				continue
			}
			if err := src.SendExact(dst, c.Count); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.Source, err))
				continue
			}
			accepted++
		}
		if accepted == 0 {
			return 0, errors.Join(errs...)
		}
		return accepted, nil

	case ActionDefend, ActionAttack, ActionExpand, ActionConsolidate:
		src, dst := w.Construct(a.Source), w.Construct(a.Target)
		if src == nil {
			return 0, conquest.ErrUnknownConstruct
		}
		var err error
		if a.Count > 0 {
			err = src.SendExact(dst, a.Count)
		} else {
			err = src.SendUnits(dst, a.Fraction)
		}
		if err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownAction, a.Kind)
}
