package conquest

import "time"

// PerUnitDelay is the interval between consecutive units leaving a stream.
const PerUnitDelay = 250 * time.Millisecond

// UnitID identifies an in-flight unit.
type UnitID uint64

// Unit is a single combat token travelling between constructs.
type Unit struct {
	ID       UnitID      `json:"id"`
	Owner    FactionID   `json:"owner"`
	From     ConstructID `json:"from"`
	To       ConstructID `json:"to"`
	Position Vec2        `json:"position"`
	Speed    float64     `json:"speed"`
}

// TransferStream emits units one at a time from a source construct toward
// a destination. It is owned by the source and ends when it has sent every
// unit, the source is empty, or the source is captured.
type TransferStream struct {
	source    *Construct
	dest      *Construct
	remaining int
	sent      int
	delay     time.Duration
	elapsed   time.Duration
}

func (s *TransferStream) Source() *Construct      { return s.source }
func (s *TransferStream) Destination() *Construct { return s.dest }
func (s *TransferStream) Remaining() int          { return s.remaining }
func (s *TransferStream) Sent() int               { return s.sent }

func (c *Construct) startStream(dest *Construct, n int) {
	s := &TransferStream{
		source:    c,
		dest:      dest,
		remaining: n,
		delay:     PerUnitDelay,
		// first unit leaves on the next advance
		elapsed: PerUnitDelay,
	}
	c.streams = append(c.streams, s)
	c.w.log.Debug().
		Str("source", string(c.id)).
		Str("dest", string(dest.id)).
		Int("units", n).
		Msg("Transfer stream started")
}

// advance emits every unit due within dt and reports whether the stream is done.
func (s *TransferStream) advance(dt time.Duration) bool {
	s.elapsed += dt
	for s.elapsed >= s.delay {
		if s.remaining <= 0 || s.source.units <= 0 {
			return true
		}
		s.elapsed -= s.delay
		s.remaining--
		s.sent++
		s.source.units--
		s.source.emitCount()
		s.source.w.launch(s.source, s.dest)
	}
	return s.remaining <= 0 || s.source.units <= 0
}

func (c *Construct) advanceStreams(dt time.Duration) {
	if len(c.streams) == 0 {
		return
	}
	live := c.streams[:0]
	for _, s := range c.streams {
		if !s.advance(dt) {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(c.streams); i++ {
		c.streams[i] = nil
	}
	c.streams = live
}

// cancelStreams stops every outgoing stream. Units already launched keep going.
func (c *Construct) cancelStreams() {
	for i := range c.streams {
		c.streams[i] = nil
	}
	c.streams = c.streams[:0]
}
