package conquest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Phase gates whether the simulation and AI advance.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseFinished Phase = "finished"
)

// DefaultUnitSpeed is how far a unit travels per second.
const DefaultUnitSpeed = 3.0

// PopulationCap decides whether a faction may keep producing.
type PopulationCap interface {
	IsPopulationCapFull(f FactionID) bool
}

// PopulationCapFunc adapts a function to PopulationCap.
type PopulationCapFunc func(FactionID) bool

func (fn PopulationCapFunc) IsPopulationCapFull(f FactionID) bool { return fn(f) }

// CapacityCap is full when a faction holds at least the summed capacity of
// its producer constructs.
type CapacityCap struct{ w *World }

func (c CapacityCap) IsPopulationCapFull(f FactionID) bool {
	units, capacity := 0, 0
	for _, con := range c.w.constructs {
		if con.owner != f {
			continue
		}
		units += con.units
		if con.typ.IsProducer() {
			capacity += con.typ.MaxCapacity
		}
	}
	return capacity > 0 && units >= capacity
}

// World is the registry of factions, constructs and in-flight units, plus
// the simulated clock. It is not safe for concurrent use; callers serialize
// all access onto one goroutine.
type World struct {
	catalog *Catalog
	sched   *Scheduler
	log     zerolog.Logger
	rng     *rand.Rand

	phase      Phase
	factions   []Faction
	constructs []*Construct
	byID       map[ConstructID]*Construct

	units    []*Unit
	nextUnit UnitID

	unitSpeed        float64
	externalMovement bool
	popCap           PopulationCap
	listeners        []Listener
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the world's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *World) { w.log = l.With().Str("component", "world").Logger() }
}

// WithPopulationCap replaces the default CapacityCap.
func WithPopulationCap(p PopulationCap) Option {
	return func(w *World) { w.popCap = p }
}

// WithUnitSpeed sets the base travel speed of units.
func WithUnitSpeed(speed float64) Option {
	return func(w *World) {
		if speed > 0 {
			w.unitSpeed = speed
		}
	}
}

// WithRand sets the random source used by combat passives.
func WithRand(r *rand.Rand) Option {
	return func(w *World) { w.rng = r }
}

// WithExternalMovement disables built-in unit movement. The movement
// collaborator must call DeliverUnit when a unit reaches its destination.
func WithExternalMovement() Option {
	return func(w *World) { w.externalMovement = true }
}

// NewWorld creates an empty world in PhaseSetup with the Unclaimed faction registered.
func NewWorld(catalog *Catalog, opts ...Option) *World {
	w := &World{
		catalog:   catalog,
		sched:     NewScheduler(),
		log:       zerolog.Nop(),
		rng:       rand.New(rand.NewSource(1)),
		phase:     PhaseSetup,
		factions:  []Faction{Unclaimed},
		byID:      make(map[ConstructID]*Construct),
		unitSpeed: DefaultUnitSpeed,
	}
	w.popCap = CapacityCap{w: w}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Catalog() *Catalog      { return w.catalog }
func (w *World) Scheduler() *Scheduler  { return w.sched }
func (w *World) Now() time.Duration     { return w.sched.Now() }
func (w *World) Phase() Phase           { return w.phase }
func (w *World) Logger() zerolog.Logger { return w.log }

// SetPhase changes the play phase.
func (w *World) SetPhase(p Phase) {
	if p == w.phase {
		return
	}
	w.log.Info().Str("from", string(w.phase)).Str("to", string(p)).Msg("Phase changed")
	w.phase = p
	w.emit(Event{Type: EventPhaseChanged, Phase: p})
}

// AddFaction registers a faction.
func (w *World) AddFaction(f Faction) error {
	if f.ID == "" {
		return fmt.Errorf("add faction: %w", ErrUnknownFaction)
	}
	if _, ok := w.Faction(f.ID); ok {
		return fmt.Errorf("add faction %s: %w", f.ID, ErrDuplicateFaction)
	}
	w.factions = append(w.factions, f)
	return nil
}

// Faction looks up a registered faction.
func (w *World) Faction(id FactionID) (Faction, bool) {
	for _, f := range w.factions {
		if f.ID == id {
			return f, true
		}
	}
	return Faction{}, false
}

// Factions returns every registered faction, Unclaimed first.
func (w *World) Factions() []Faction {
	out := make([]Faction, len(w.factions))
	copy(out, w.factions)
	return out
}

// AddConstruct places a construct of the named type.
func (w *World) AddConstruct(id ConstructID, pos Vec2, owner FactionID, typeName string, units int) (*Construct, error) {
	if _, dup := w.byID[id]; dup || id == "" {
		return nil, fmt.Errorf("add construct %q: %w", id, ErrDuplicateID)
	}
	if _, ok := w.Faction(owner); !ok {
		return nil, fmt.Errorf("add construct %s: %w: %s", id, ErrUnknownFaction, owner)
	}
	t, ok := w.catalog.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("add construct %s: %w: %s", id, ErrUnknownType, typeName)
	}
	if units < 0 {
		units = 0
	}
	c := &Construct{w: w, id: id, pos: pos, owner: owner, units: units, typ: t, state: StateIdle}
	w.constructs = append(w.constructs, c)
	w.byID[id] = c
	return c, nil
}

// Construct looks up a construct by ID, returning nil if absent.
func (w *World) Construct(id ConstructID) *Construct { return w.byID[id] }

// Constructs returns every construct in registration order.
func (w *World) Constructs() []*Construct {
	out := make([]*Construct, len(w.constructs))
	copy(out, w.constructs)
	return out
}

// Units returns the in-flight units.
func (w *World) Units() []*Unit {
	out := make([]*Unit, len(w.units))
	copy(out, w.units)
	return out
}

// Step advances the simulation by dt. Nothing moves unless the phase is Playing.
func (w *World) Step(dt time.Duration) {
	if w.phase != PhasePlaying || dt <= 0 {
		return
	}
	w.sched.Advance(dt)
	for _, c := range w.constructs {
		c.Tick(dt)
	}
	for _, c := range w.constructs {
		c.advanceStreams(dt)
	}
	w.runPassives(dt)
	if !w.externalMovement {
		w.moveUnits(dt)
	}
}

func (w *World) launch(from, to *Construct) {
	speed := w.unitSpeed
	if from.typ.Kind == Helipad && from.typ.Combat.SpeedMultiplier > 0 {
		speed *= from.typ.Combat.SpeedMultiplier
	}
	w.nextUnit++
	u := &Unit{ID: w.nextUnit, Owner: from.owner, From: from.id, To: to.id, Position: from.pos, Speed: speed}
	w.units = append(w.units, u)
	w.emit(Event{Type: EventUnitLaunched, Construct: from.id, From: from.owner, Unit: u.ID})
}

func (w *World) moveUnits(dt time.Duration) {
	secs := dt.Seconds()
	var arrived []*Unit
	live := w.units[:0]
	for _, u := range w.units {
		dest := w.byID[u.To]
		delta := dest.pos.Sub(u.Position)
		dist := delta.Len()
		step := u.Speed * secs
		if dist <= step {
			arrived = append(arrived, u)
			continue
		}
		u.Position = u.Position.Add(delta.Scale(step / dist))
		live = append(live, u)
	}
	for i := len(live); i < len(w.units); i++ {
		w.units[i] = nil
	}
	w.units = live
	for _, u := range arrived {
		w.arrive(u)
	}
}

// DeliverUnit resolves an in-flight unit against its destination. It is the
// arrival callback for an external movement collaborator and reports false
// for unknown or already resolved units.
func (w *World) DeliverUnit(id UnitID) bool {
	u := w.removeUnit(id)
	if u == nil {
		return false
	}
	w.arrive(u)
	return true
}

func (w *World) arrive(u *Unit) {
	dest := w.byID[u.To]
	dest.ReceiveUnit(u.Owner)
	w.emit(Event{Type: EventUnitArrived, Construct: dest.id, From: u.Owner, Unit: u.ID})
}

func (w *World) removeUnit(id UnitID) *Unit {
	for i, u := range w.units {
		if u.ID == id {
			w.units = append(w.units[:i], w.units[i+1:]...)
			return u
		}
	}
	return nil
}

// Winner reports the faction that owns every non-neutral construct while no
// other faction has units in flight.
func (w *World) Winner() (FactionID, bool) {
	var winner FactionID
	for _, c := range w.constructs {
		if c.owner == UnclaimedID {
			continue
		}
		if winner == "" {
			winner = c.owner
		} else if c.owner != winner {
			return "", false
		}
	}
	if winner == "" {
		return "", false
	}
	for _, u := range w.units {
		if u.Owner != winner {
			return "", false
		}
	}
	return winner, true
}
