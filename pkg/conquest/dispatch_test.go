package conquest

import (
	"errors"
	"testing"
	"time"
)

func TestSendUnits_DuplicateStreamRejected(t *testing.T) {
	w := newTestWorld(t)
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 10)
	dst := mustAdd(t, w, "b", Vec2{X: 10}, blue, TypeHouse1, 10)

	if err := src.SendUnits(dst, 0.5); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := src.SendUnits(dst, 0.5); !errors.Is(err, ErrDuplicateStream) {
		t.Fatalf("second send should be rejected, got %v", err)
	}
	targets := src.InFlightTargets()
	if len(targets) != 1 || targets[0] != dst.ID() {
		t.Errorf("expected exactly one in-flight target, got %v", targets)
	}
	if src.Streams()[0].Remaining() != 5 {
		t.Errorf("expected 5 queued units, got %d", src.Streams()[0].Remaining())
	}
}

func TestSendUnits_Rejections(t *testing.T) {
	w := newTestWorld(t)
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 10)
	empty := mustAdd(t, w, "e", Vec2{X: 1}, red, TypeHouse1, 0)
	dst := mustAdd(t, w, "b", Vec2{X: 10}, blue, TypeHouse1, 10)

	tests := []struct {
		name string
		send func() error
		want error
	}{
		{"self", func() error { return src.SendUnits(src, 0.5) }, ErrSelfTarget},
		{"nil destination", func() error { return src.SendExact(nil, 1) }, ErrUnknownConstruct},
		{"zero count", func() error { return src.SendExact(dst, 0) }, ErrInvalidAmount},
		{"negative count", func() error { return src.SendExact(dst, -3) }, ErrInvalidAmount},
		{"zero fraction", func() error { return src.SendUnits(dst, 0) }, ErrInvalidAmount},
		{"empty source", func() error { return empty.SendUnits(dst, 1) }, ErrNoUnits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(src.InFlightTargets()) != 0 {
		t.Errorf("rejected sends registered targets: %v", src.InFlightTargets())
	}
}

func TestSendUnits_FractionRounding(t *testing.T) {
	tests := []struct {
		units    int
		fraction float64
		want     int
	}{
		{10, 0.5, 5},
		{7, 0.5, 3},
		{1, 0.5, 1},
		{3, 0.1, 1},
		{10, 2.0, 10},
	}
	for _, tt := range tests {
		w := newTestWorld(t)
		src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, tt.units)
		dst := mustAdd(t, w, "b", Vec2{X: 10}, blue, TypeHouse1, 0)
		if err := src.SendUnits(dst, tt.fraction); err != nil {
			t.Fatalf("send %d*%.2f: %v", tt.units, tt.fraction, err)
		}
		if got := src.Streams()[0].Remaining(); got != tt.want {
			t.Errorf("send %d*%.2f: expected %d, got %d", tt.units, tt.fraction, tt.want, got)
		}
	}
}

func TestTransferStream_EmitsOnePerDelay(t *testing.T) {
	w := newTestWorld(t, WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 10)
	dst := mustAdd(t, w, "b", Vec2{X: 100}, blue, TypeHouse1, 0)

	if err := src.SendExact(dst, 4); err != nil {
		t.Fatalf("send: %v", err)
	}
	w.Step(10 * time.Millisecond)
	if src.UnitCount() != 9 || len(w.Units()) != 1 {
		t.Fatalf("first unit should leave immediately: count=%d inflight=%d", src.UnitCount(), len(w.Units()))
	}
	w.Step(PerUnitDelay)
	w.Step(PerUnitDelay)
	w.Step(PerUnitDelay)
	if src.UnitCount() != 6 {
		t.Errorf("expected 6 left, got %d", src.UnitCount())
	}
	if src.HasStreamTo(dst.ID()) {
		t.Error("exhausted stream should clear its in-flight target")
	}
	w.Step(PerUnitDelay)
	if src.UnitCount() != 6 {
		t.Errorf("no further emission after exhaustion, got %d", src.UnitCount())
	}
}

func TestTransferStream_PartialDeliveryWhenSourceRunsDry(t *testing.T) {
	w := newTestWorld(t, WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 3)
	d1 := mustAdd(t, w, "b", Vec2{X: 100}, blue, TypeHouse1, 0)
	d2 := mustAdd(t, w, "c", Vec2{Y: 100}, blue, TypeHouse1, 0)

	if err := src.SendExact(d1, 10); err != nil {
		t.Fatalf("send d1: %v", err)
	}
	if err := src.SendExact(d2, 10); err != nil {
		t.Fatalf("send d2: %v", err)
	}
	for i := 0; i < 10; i++ {
		w.Step(PerUnitDelay)
	}
	if src.UnitCount() != 0 {
		t.Errorf("shared counter should drain to 0, got %d", src.UnitCount())
	}
	if len(src.Streams()) != 0 {
		t.Errorf("streams should end when the source is empty")
	}
	if len(w.Units()) != 3 {
		t.Errorf("expected 3 units launched, got %d", len(w.Units()))
	}
}

func TestTransferStream_CaptureStopsEmissionButNotFlyingUnits(t *testing.T) {
	w := newTestWorld(t, WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 3)
	dst := mustAdd(t, w, "b", Vec2{X: 100}, blue, TypeHouse1, 50)

	if err := src.SendExact(dst, 3); err != nil {
		t.Fatalf("send: %v", err)
	}
	w.Step(10 * time.Millisecond)
	w.Step(PerUnitDelay)
	launched := len(w.Units())
	if launched != 2 {
		t.Fatalf("expected 2 launched, got %d", launched)
	}

	src.ReceiveUnit(blue)
	src.ReceiveUnit(blue)
	if src.Owner() != blue {
		t.Fatalf("source should be captured")
	}
	w.Step(PerUnitDelay)
	if len(w.Units()) != launched {
		t.Errorf("cancelled stream emitted again: %d units", len(w.Units()))
	}
	for _, u := range w.Units() {
		if u.Owner != red {
			t.Errorf("in-flight unit changed owner: %s", u.Owner)
		}
	}
}

func TestUnitArrival_ResolvesAgainstDestination(t *testing.T) {
	w := newTestWorld(t, WithUnitSpeed(10), WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 5)
	dst := mustAdd(t, w, "b", Vec2{X: 5}, blue, TypeHouse1, 2)

	if err := src.SendExact(dst, 5); err != nil {
		t.Fatalf("send: %v", err)
	}
	for i := 0; i < 40; i++ {
		w.Step(PerUnitDelay)
	}
	if dst.Owner() != red {
		t.Fatalf("expected capture by red, owner %s", dst.Owner())
	}
	// 2 defenders absorb 3 units (the third captures at 1), the last 2 reinforce
	if dst.UnitCount() != 3 {
		t.Errorf("expected 3 units after capture and reinforcement, got %d", dst.UnitCount())
	}
	if len(w.Units()) != 0 {
		t.Errorf("all units should have arrived")
	}
}

func TestExternalMovement_DeliverUnit(t *testing.T) {
	w := newTestWorld(t, WithExternalMovement(), WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	src := mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 1)
	dst := mustAdd(t, w, "b", Vec2{X: 1}, blue, TypeHouse1, 0)

	if err := src.SendExact(dst, 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	for i := 0; i < 10; i++ {
		w.Step(time.Second)
	}
	units := w.Units()
	if len(units) != 1 {
		t.Fatalf("unit should wait for external delivery, got %d", len(units))
	}
	if !w.DeliverUnit(units[0].ID) {
		t.Fatal("deliver failed")
	}
	if dst.Owner() != red {
		t.Errorf("expected capture on delivery")
	}
	if w.DeliverUnit(units[0].ID) {
		t.Error("second delivery of the same unit should fail")
	}
}

func TestHelipad_LaunchesFasterUnits(t *testing.T) {
	w := newTestWorld(t)
	pad := mustAdd(t, w, "p", Vec2{}, red, TypeHelipad, 5)
	dst := mustAdd(t, w, "b", Vec2{X: 50}, blue, TypeHouse1, 0)
	if err := pad.SendExact(dst, 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	w.Step(10 * time.Millisecond)
	u := w.Units()[0]
	if u.Speed != DefaultUnitSpeed*1.5 {
		t.Errorf("expected helipad speed %.1f, got %.1f", DefaultUnitSpeed*1.5, u.Speed)
	}
}
