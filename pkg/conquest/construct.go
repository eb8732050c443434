package conquest

import (
	"math"
	"time"
)

// ConstructID identifies a construct within a world.
type ConstructID string

// State is a construct's lifecycle state. Upgrading and Converting are
// mutually exclusive.
type State string

const (
	StateIdle       State = "idle"
	StateUpgrading  State = "upgrading"
	StateConverting State = "converting"
)

// Construct is a capturable map node. It holds units, produces more if its
// type is a producer, and can be upgraded or converted. All mutation happens
// on the goroutine stepping its World.
type Construct struct {
	w *World

	id    ConstructID
	pos   Vec2
	owner FactionID
	units int
	typ   *TypeDef
	state State

	accumulator float64
	pending     Handle
	pendingType *TypeDef

	streams []*TransferStream

	// combat passive accumulators
	shots  float64
	reload time.Duration
}

func (c *Construct) ID() ConstructID      { return c.id }
func (c *Construct) Position() Vec2       { return c.pos }
func (c *Construct) Owner() FactionID     { return c.owner }
func (c *Construct) UnitCount() int       { return c.units }
func (c *Construct) Type() *TypeDef       { return c.typ }
func (c *Construct) State() State         { return c.state }
func (c *Construct) IsNeutral() bool      { return c.owner == UnclaimedID }
func (c *Construct) Busy() bool           { return c.state != StateIdle }
func (c *Construct) Accumulator() float64 { return c.accumulator }

// PendingType returns the type an in-progress upgrade or conversion will
// produce, or nil when idle.
func (c *Construct) PendingType() *TypeDef { return c.pendingType }

// UpgradeTarget returns the type AttemptUpgrade would move to, or nil.
func (c *Construct) UpgradeTarget() *TypeDef { return c.w.catalog.UpgradeOf(c.typ) }

// Dist returns the distance between two constructs.
func (c *Construct) Dist(o *Construct) float64 { return c.pos.Dist(o.pos) }

// InFlightTargets returns the destinations of active outgoing streams.
func (c *Construct) InFlightTargets() []ConstructID {
	out := make([]ConstructID, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s.dest.id)
	}
	return out
}

// Streams returns the active outgoing streams.
func (c *Construct) Streams() []*TransferStream {
	out := make([]*TransferStream, len(c.streams))
	copy(out, c.streams)
	return out
}

// HasStreamTo reports whether an outgoing stream to dest is active.
func (c *Construct) HasStreamTo(dest ConstructID) bool {
	for _, s := range c.streams {
		if s.dest.id == dest {
			return true
		}
	}
	return false
}

// Tick advances production by dt. Only producer types owned by a real
// faction accumulate, and only while below capacity and the owner's
// population cap is not full. Whole units move into the count and the
// fractional remainder carries over.
func (c *Construct) Tick(dt time.Duration) {
	if c.typ == nil || !c.typ.IsProducer() || c.owner == UnclaimedID || dt <= 0 {
		return
	}
	if c.units >= c.typ.MaxCapacity {
		c.accumulator = 0
		return
	}
	if c.w.popCap != nil && c.w.popCap.IsPopulationCapFull(c.owner) {
		return
	}
	c.accumulator += c.typ.ProductionPerSecond * dt.Seconds()
	whole := int(math.Floor(c.accumulator + 1e-9))
	if whole < 1 {
		return
	}
	c.accumulator -= float64(whole)
	if c.accumulator < 0 {
		c.accumulator = 0
	}
	c.units += whole
	if c.units >= c.typ.MaxCapacity {
		c.units = c.typ.MaxCapacity
		c.accumulator = 0
	}
	c.emitCount()
}

// ReceiveUnit resolves one arriving unit. A friendly unit reinforces; a
// hostile one removes a unit and, when the count drops below zero, captures
// the construct. It reports whether ownership changed.
func (c *Construct) ReceiveUnit(unitOwner FactionID) bool {
	if unitOwner == c.owner {
		c.units++
		c.emitCount()
		return false
	}
	c.units--
	if c.units >= 0 {
		c.emitCount()
		return false
	}
	c.capture(unitOwner)
	return true
}

func (c *Construct) capture(by FactionID) {
	prev := c.owner
	c.owner = by
	c.units = 1
	c.accumulator = 0
	c.cancelTransition()
	c.cancelStreams()

	c.w.log.Debug().
		Str("construct", string(c.id)).
		Str("from", string(prev)).
		Str("to", string(by)).
		Msg("Construct captured")
	c.w.emit(Event{Type: EventOwnershipChanged, Construct: c.id, From: prev, To: by})

	c.downgrade()
	c.emitCount()
}

// downgrade swaps to the downgrade target if one exists.
func (c *Construct) downgrade() bool {
	down := c.w.catalog.DowngradeOf(c.typ)
	if down == nil {
		return false
	}
	c.cancelTransition()
	old := c.typ
	c.typ = down
	c.w.emit(Event{Type: EventTypeChanged, Construct: c.id, FromType: old.Name, ToType: down.Name, Reason: ReasonDowngrade})
	return true
}

// AttemptUpgrade starts an upgrade and reports whether it did.
func (c *Construct) AttemptUpgrade() bool { return c.Upgrade() == nil }

// Upgrade deducts the upgrade cost and schedules the type swap. The cost is
// sunk if the upgrade is interrupted.
func (c *Construct) Upgrade() error {
	target := c.w.catalog.UpgradeOf(c.typ)
	if target == nil {
		return ErrNoUpgrade
	}
	if c.state != StateIdle {
		return ErrBusy
	}
	if c.units < c.typ.UpgradeCost {
		return ErrInsufficientUnits
	}
	c.units -= c.typ.UpgradeCost
	c.emitCount()
	c.begin(StateUpgrading, target, c.typ.UpgradeTime, ReasonUpgrade)
	return nil
}

// AttemptConvert starts a lateral conversion and reports whether it did.
func (c *Construct) AttemptConvert(typeName string) bool { return c.Convert(typeName) == nil }

// Convert deducts the conversion cost and schedules a swap to typeName,
// which must be one of the current type's conversion targets.
func (c *Construct) Convert(typeName string) error {
	target, ok := c.w.catalog.Get(typeName)
	if !ok || !c.typ.CanConvertTo(typeName) {
		return ErrInvalidConversion
	}
	if c.state != StateIdle {
		return ErrBusy
	}
	if c.units < c.typ.ConversionCost {
		return ErrInsufficientUnits
	}
	c.units -= c.typ.ConversionCost
	c.emitCount()
	c.begin(StateConverting, target, c.typ.ConversionTime, ReasonConvert)
	return nil
}

func (c *Construct) begin(s State, target *TypeDef, d time.Duration, reason ChangeReason) {
	c.state = s
	c.pendingType = target
	c.pending = c.w.sched.After(d, func() { c.finish(reason) })
}

func (c *Construct) finish(reason ChangeReason) {
	if c.pendingType == nil {
		return
	}
	old := c.typ
	c.typ = c.pendingType
	c.state = StateIdle
	c.pendingType = nil
	c.pending = 0
	c.shots, c.reload = 0, 0
	c.w.emit(Event{Type: EventTypeChanged, Construct: c.id, FromType: old.Name, ToType: c.typ.Name, Reason: reason})
}

func (c *Construct) cancelTransition() {
	if c.pending != 0 {
		c.w.sched.Cancel(c.pending)
	}
	c.pending = 0
	c.pendingType = nil
	c.state = StateIdle
}

// SendUnits streams floor(count*fraction) units to dest, at least one when
// the construct holds any.
func (c *Construct) SendUnits(dest *Construct, fraction float64) error {
	if err := c.checkSend(dest); err != nil {
		return err
	}
	if fraction <= 0 || math.IsNaN(fraction) {
		return ErrInvalidAmount
	}
	if c.units <= 0 {
		return ErrNoUnits
	}
	n := int(math.Floor(float64(c.units) * math.Min(fraction, 1)))
	if n == 0 {
		n = 1
	}
	c.startStream(dest, n)
	return nil
}

// SendExact streams count units to dest. Delivery stops early if the
// construct runs dry.
func (c *Construct) SendExact(dest *Construct, count int) error {
	if err := c.checkSend(dest); err != nil {
		return err
	}
	if count <= 0 {
		return ErrInvalidAmount
	}
	if c.units <= 0 {
		return ErrNoUnits
	}
	c.startStream(dest, count)
	return nil
}

func (c *Construct) checkSend(dest *Construct) error {
	if dest == nil {
		return ErrUnknownConstruct
	}
	if dest == c || dest.id == c.id {
		return ErrSelfTarget
	}
	if c.HasStreamTo(dest.id) {
		return ErrDuplicateStream
	}
	return nil
}

func (c *Construct) emitCount() {
	c.w.emit(Event{Type: EventUnitCountChanged, Construct: c.id, Count: c.units})
}
