package bot

import (
	"github.com/rs/zerolog"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// ControllerState is where a controller is in its decision cycle.
type ControllerState string

const (
	StateIdle       ControllerState = "idle"
	StateEvaluating ControllerState = "evaluating"
	StateExecuting  ControllerState = "executing"
)

// DecisionRecorder receives every decision a controller makes. kind is
// empty when the policy chose to idle.
type DecisionRecorder interface {
	RecordDecision(policy string, kind ActionKind, accepted bool)
}

// Controller drives one AI faction: on every cadence tick it asks its
// policy for an action and executes it against the world.
type Controller struct {
	w       *conquest.World
	faction conquest.FactionID
	policy  Policy
	rec     DecisionRecorder
	log     zerolog.Logger

	state     ControllerState
	handle    conquest.Handle
	running   bool
	last      *Action
	decisions int
	accepted  int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRecorder reports decisions to r.
func WithRecorder(r DecisionRecorder) ControllerOption {
	return func(c *Controller) { c.rec = r }
}

func NewController(w *conquest.World, faction conquest.FactionID, policy Policy, opts ...ControllerOption) *Controller {
	c := &Controller{
		w:       w,
		faction: faction,
		policy:  policy,
		state:   StateIdle,
	}
	c.log = w.Logger().With().Str("component", "ai").Str("faction", string(faction)).Str("policy", policy.Name()).Logger()
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Faction() conquest.FactionID { return c.faction }
func (c *Controller) Policy() Policy              { return c.policy }
func (c *Controller) State() ControllerState      { return c.state }
func (c *Controller) LastAction() *Action         { return c.last }

// Stats returns how many decisions produced an action and how many of
// those were accepted by the world.
func (c *Controller) Stats() (decisions, accepted int) { return c.decisions, c.accepted }

// Start schedules the decision cycle on the world's scheduler.
func (c *Controller) Start() {
	if c.running {
		return
	}
	cad := c.policy.Cadence()
	c.handle = c.w.Scheduler().Every(cad.Grace, cad.Interval, func() { c.Evaluate() })
	c.running = true
}

// Stop cancels any future decisions.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.w.Scheduler().Cancel(c.handle)
	c.running = false
	c.state = StateIdle
}

// Evaluate runs one Idle -> Evaluating -> Executing -> Idle cycle and
// returns the executed action, or nil. Nothing happens outside the
// playing phase.
func (c *Controller) Evaluate() *Action {
	if c.w.Phase() != conquest.PhasePlaying {
		return nil
	}
	c.state = StateEvaluating
	a := c.policy.Decide(c.w.View(), c.faction)
	if a == nil {
		c.state = StateIdle
		if c.rec != nil {
			c.rec.RecordDecision(c.policy.Name(), "", false)
		}
		return nil
	}

	c.state = StateExecuting
	c.decisions++
	n, err := a.Execute(c.w)
	if err != nil {
		c.log.Debug().Err(err).Stringer("action", a).Msg("action declined")
	} else {
		c.accepted++
		c.log.Debug().Stringer("action", a).Int("commands", n).Msg("action executed")
	}
	if c.rec != nil {
		c.rec.RecordDecision(c.policy.Name(), a.Kind, err == nil)
	}
	c.last = a
	c.state = StateIdle
	return a
}
