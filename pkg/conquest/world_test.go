package conquest

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestScheduler_OrderAndCancel(t *testing.T) {
	s := NewScheduler()
	var fired []string
	s.After(2*time.Second, func() { fired = append(fired, "b") })
	s.After(time.Second, func() { fired = append(fired, "a") })
	s.After(2*time.Second, func() { fired = append(fired, "c") })
	h := s.After(time.Second, func() { fired = append(fired, "cancelled") })

	if !s.Cancel(h) {
		t.Fatal("cancel should succeed")
	}
	if s.Cancel(h) {
		t.Error("second cancel should be a no-op")
	}
	s.Advance(1500 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("expected [a], got %v", fired)
	}
	s.Advance(time.Second)
	want := []string{"a", "b", "c"}
	if len(fired) != len(want) {
		t.Fatalf("expected %v, got %v", want, fired)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], fired[i])
		}
	}
	if s.Now() != 2500*time.Millisecond {
		t.Errorf("expected now=2.5s, got %v", s.Now())
	}
}

func TestScheduler_Every(t *testing.T) {
	s := NewScheduler()
	n := 0
	var h Handle
	h = s.Every(time.Second, 500*time.Millisecond, func() {
		n++
		if n == 3 {
			s.Cancel(h)
		}
	})
	s.Advance(900 * time.Millisecond)
	if n != 0 {
		t.Fatalf("fired before grace delay")
	}
	s.Advance(10 * time.Second)
	if n != 3 {
		t.Errorf("expected 3 firings before self-cancel, got %d", n)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty queue, got %d", s.Len())
	}
}

func TestCatalog_Validate(t *testing.T) {
	house := func(name, up, down string) TypeDef {
		return TypeDef{Name: name, Kind: House, MaxCapacity: 10, ProductionPerSecond: 1, UpgradeTarget: up, DowngradeTarget: down}
	}
	tests := []struct {
		name string
		defs []TypeDef
		want error
	}{
		{"valid chain", []TypeDef{house("a", "b", ""), house("b", "c", "a"), house("c", "", "b")}, nil},
		{"self upgrade", []TypeDef{house("a", "a", "")}, ErrUpgradeCycle},
		{"cycle", []TypeDef{house("a", "b", ""), house("b", "c", ""), house("c", "a", "")}, ErrUpgradeCycle},
		{"unknown upgrade", []TypeDef{house("a", "z", "")}, ErrUnknownType},
		{"unknown downgrade", []TypeDef{house("a", "", "z")}, ErrUnknownType},
		{"bad kind", []TypeDef{{Name: "x", Kind: "castle"}}, ErrInvalidType},
		{"duplicate", []TypeDef{house("a", "", ""), house("a", "", "")}, ErrInvalidType},
		{"negative cost", []TypeDef{{Name: "x", Kind: House, UpgradeCost: -1}}, ErrInvalidType},
		{
			"lateral cycle allowed",
			[]TypeDef{
				{Name: "h", Kind: House, Conversions: []string{"t"}},
				{Name: "t", Kind: Turret, Conversions: []string{"p"}},
				{Name: "p", Kind: Helipad, Conversions: []string{"h"}},
			},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var ce *CatalogError
			if err != nil && !errors.As(err, &ce) {
				t.Errorf("expected *CatalogError, got %T", err)
			}
		})
	}
}

func TestDefaultCatalog_Chain(t *testing.T) {
	c := DefaultCatalog()
	h, _ := c.Get(TypeHouse1)
	var chain []string
	for td := h; td != nil; td = c.UpgradeOf(td) {
		chain = append(chain, td.Name)
	}
	if len(chain) != 4 || chain[3] != TypeHouse4 {
		t.Errorf("unexpected upgrade chain %v", chain)
	}
	if h.MaxCapacity != 20 || h.ProductionPerSecond != 0.5 || h.UpgradeCost != 50 {
		t.Errorf("unexpected House1 stats %+v", h)
	}
}

func TestWorld_PhaseGatesStep(t *testing.T) {
	w := newTestWorld(t)
	c := mustAdd(t, w, "h", Vec2{}, red, TypeHouse1, 0)
	w.SetPhase(PhasePaused)
	w.Step(10 * time.Second)
	if c.UnitCount() != 0 || w.Now() != 0 {
		t.Fatalf("paused world advanced: units=%d now=%v", c.UnitCount(), w.Now())
	}
	w.SetPhase(PhasePlaying)
	w.Step(10 * time.Second)
	if c.UnitCount() != 5 {
		t.Errorf("expected 5 units, got %d", c.UnitCount())
	}
}

func TestWorld_AddConstructErrors(t *testing.T) {
	w := newTestWorld(t)
	mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 0)
	if _, err := w.AddConstruct("a", Vec2{}, red, TypeHouse1, 0); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := w.AddConstruct("b", Vec2{}, "green", TypeHouse1, 0); !errors.Is(err, ErrUnknownFaction) {
		t.Errorf("expected ErrUnknownFaction, got %v", err)
	}
	if _, err := w.AddConstruct("c", Vec2{}, red, "Castle", 0); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if err := w.AddFaction(Faction{ID: red}); !errors.Is(err, ErrDuplicateFaction) {
		t.Errorf("expected ErrDuplicateFaction, got %v", err)
	}
}

func TestTurret_ShootsHostileUnits(t *testing.T) {
	noCap := WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true }))
	w := newTestWorld(t, noCap, WithUnitSpeed(1))
	src := mustAdd(t, w, "a", Vec2{}, blue, TypeHouse1, 5)
	turret := mustAdd(t, w, "t", Vec2{X: 3}, red, TypeTurret, 4)

	if err := src.SendExact(turret, 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	destroyed := 0
	w.Subscribe(func(e Event) {
		if e.Type == EventUnitDestroyed {
			destroyed++
		}
	})
	for i := 0; i < 20; i++ {
		w.Step(250 * time.Millisecond)
	}
	if destroyed != 1 {
		t.Errorf("expected the turret to shoot one unit, got %d", destroyed)
	}
	if turret.UnitCount() != 4 || turret.Owner() != red {
		t.Errorf("turret garrison should be untouched, got %d owned by %s", turret.UnitCount(), turret.Owner())
	}
}

func TestMortar_StrikesNearestEnemy(t *testing.T) {
	noCap := WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true }))
	w := newTestWorld(t, noCap, WithRand(rand.New(rand.NewSource(7))))
	mortar := mustAdd(t, w, "m", Vec2{}, red, TypeMortar, 0)
	near := mustAdd(t, w, "n", Vec2{X: 4}, blue, TypeHouse2, 20)
	far := mustAdd(t, w, "f", Vec2{X: 20}, blue, TypeHouse1, 20)

	w.Step(7 * time.Second)
	if near.UnitCount() != 20 {
		t.Fatalf("mortar fired before reload")
	}
	w.Step(time.Second)
	if near.UnitCount() != 10 {
		t.Errorf("expected half the garrison killed, got %d", near.UnitCount())
	}
	if far.UnitCount() != 20 {
		t.Errorf("target out of range was hit")
	}
	if mortar.UnitCount() != 0 {
		t.Errorf("mortar count changed")
	}
}

func TestMortar_AlwaysDowngradesAtFullChance(t *testing.T) {
	cat, err := NewCatalog(
		TypeDef{Name: "m", Kind: Mortar, Combat: Combat{KillFraction: 0, DowngradeChance: 1, Range: 10, Reload: time.Second}},
		TypeDef{Name: "h1", Kind: House, MaxCapacity: 10},
		TypeDef{Name: "h2", Kind: House, MaxCapacity: 10, DowngradeTarget: "h1"},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	w := NewWorld(cat)
	w.AddFaction(Faction{ID: red})
	w.AddFaction(Faction{ID: blue})
	w.SetPhase(PhasePlaying)
	mustAdd(t, w, "m", Vec2{}, red, "m", 0)
	target := mustAdd(t, w, "t", Vec2{X: 1}, blue, "h2", 5)

	w.Step(time.Second)
	if target.Type().Name != "h1" {
		t.Errorf("expected downgrade to h1, got %s", target.Type().Name)
	}
}

func TestWinner(t *testing.T) {
	w := newTestWorld(t)
	mustAdd(t, w, "a", Vec2{}, red, TypeHouse1, 5)
	b := mustAdd(t, w, "b", Vec2{X: 1}, blue, TypeHouse1, 0)
	mustAdd(t, w, "n", Vec2{X: 2}, UnclaimedID, TypeHouse1, 5)

	if _, ok := w.Winner(); ok {
		t.Fatal("two factions alive, no winner expected")
	}
	b.ReceiveUnit(red)
	if f, ok := w.Winner(); !ok || f != red {
		t.Errorf("expected red to win, got %s %v", f, ok)
	}
}

func TestView_Analysis(t *testing.T) {
	w := newTestWorld(t, WithUnitSpeed(1), WithPopulationCap(PopulationCapFunc(func(FactionID) bool { return true })))
	x := mustAdd(t, w, "x", Vec2{X: 0}, red, TypeHouse1, 5)
	y := mustAdd(t, w, "y", Vec2{X: 4}, red, TypeHouse2, 20)
	e := mustAdd(t, w, "e", Vec2{X: 10}, blue, TypeHouse1, 30)
	n := mustAdd(t, w, "n", Vec2{X: 6}, UnclaimedID, TypeHouse1, 2)
	mustAdd(t, w, "f", Vec2{X: 12}, blue, TypeForge, 0)

	if err := e.SendExact(x, 8); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := y.SendExact(x, 2); err != nil {
		t.Fatalf("send: %v", err)
	}
	for i := 0; i < 8; i++ {
		w.Step(PerUnitDelay)
	}
	v := w.View()
	if got := v.IncomingThreat(x); got != 8 {
		t.Errorf("expected threat 8, got %d", got)
	}
	if got := v.IncomingFriendly(x); got != 2 {
		t.Errorf("expected 2 friendly inbound, got %d", got)
	}
	if got := v.UnitTotal(red); got != 23 {
		t.Errorf("expected red total 23, got %d", got)
	}
	if got := v.Power(red, 20); got != 23+20*(0.5+0.75) {
		t.Errorf("unexpected power %.2f", got)
	}
	if got := v.AttackMultiplier(blue); got != 1.2 {
		t.Errorf("expected forge multiplier 1.2, got %.2f", got)
	}
	if got, want := v.Power(blue, 0), float64(v.UnitTotal(blue))*1.2; got != want {
		t.Errorf("forge should scale blue power to %.2f, got %.2f", want, got)
	}
	if opp := v.Opponents(red); len(opp) != 1 || opp[0] != blue {
		t.Errorf("expected [blue], got %v", opp)
	}
	center, ok := FactionCenter(v.Owned(red))
	if !ok || center.X != 2 {
		t.Errorf("expected center x=2, got %+v", center)
	}
	if _, ok := FactionCenter(nil); ok {
		t.Error("empty center should not be ok")
	}
	if got := Nearest(y.Position(), v.Hostile(red), nil); got != n {
		t.Errorf("expected nearest hostile n, got %v", got.ID())
	}
	sorted := SortByDistance(Vec2{X: 11}, v.Constructs())
	if sorted[0].ID() != "e" && sorted[0].ID() != "f" {
		t.Errorf("unexpected nearest %s", sorted[0].ID())
	}
}

func TestSnapshot_JSON(t *testing.T) {
	w := newTestWorld(t)
	a := mustAdd(t, w, "a", Vec2{X: 1, Y: 2}, red, TypeHouse1, 60)
	b := mustAdd(t, w, "b", Vec2{X: 5}, blue, TypeHouse1, 3)
	a.AttemptUpgrade()
	a.SendExact(b, 2)

	data, err := json.Marshal(w.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Constructs) != 2 || len(snap.Factions) != 3 {
		t.Fatalf("unexpected sizes: %d constructs %d factions", len(snap.Constructs), len(snap.Factions))
	}
	got := snap.Constructs[0]
	if got.State != StateUpgrading || got.PendingType != TypeHouse2 || len(got.Streams) != 1 {
		t.Errorf("unexpected construct snapshot %+v", got)
	}
}
