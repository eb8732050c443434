package bot

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// MapOptions shapes GenerateMap.
type MapOptions struct {
	Radius      float64 // faction homes sit on this circle
	HomeUnits   int
	Neutrals    int
	MinSpacing  float64
	NeutralMin  int
	NeutralMax  int
	HomeType    string // defaults to the cheapest house in the catalog
	NeutralPool []string
}

func DefaultMapOptions() MapOptions {
	return MapOptions{
		Radius:      18,
		HomeUnits:   10,
		Neutrals:    8,
		MinSpacing:  3,
		NeutralMin:  2,
		NeutralMax:  12,
		NeutralPool: []string{conquest.TypeHouse1, conquest.TypeHouse1, conquest.TypeHouse1, conquest.TypeTurret, conquest.TypeMortar, conquest.TypeForge, conquest.TypeHelipad},
	}
}

// GenerateMap places one home construct per faction, evenly spaced on a
// circle, and scatters neutrals inside it. The layout depends only on seed.
func GenerateMap(w *conquest.World, seed int64, factions []conquest.FactionID, opts MapOptions) error {
	rng := rand.New(rand.NewSource(seed))
	cat := w.Catalog()

	home := opts.HomeType
	if home == "" {
		home = cheapestHouse(cat)
	}
	if home == "" {
		return fmt.Errorf("generate map: catalog has no house type")
	}
	var pool []string
	for _, name := range opts.NeutralPool {
		if _, ok := cat.Get(name); ok {
			pool = append(pool, name)
		}
	}
	if len(pool) == 0 {
		pool = []string{home}
	}

	var placed []conquest.Vec2
	offset := rng.Float64() * 2 * math.Pi
	for i, f := range factions {
		angle := offset + 2*math.Pi*float64(i)/float64(len(factions))
		pos := conquest.Vec2{X: opts.Radius * math.Cos(angle), Y: opts.Radius * math.Sin(angle)}
		if _, err := w.AddConstruct(conquest.ConstructID(fmt.Sprintf("home-%s", f)), pos, f, home, opts.HomeUnits); err != nil {
			return fmt.Errorf("generate map: %w", err)
		}
		placed = append(placed, pos)
	}

	inner := opts.Radius * 0.8
	for i := 0; i < opts.Neutrals; i++ {
		pos := freeSpot(rng, inner, opts.MinSpacing, placed)
		placed = append(placed, pos)
		units := opts.NeutralMin
		if opts.NeutralMax > opts.NeutralMin {
			units += rng.Intn(opts.NeutralMax - opts.NeutralMin + 1)
		}
		typ := pool[rng.Intn(len(pool))]
		if _, err := w.AddConstruct(conquest.ConstructID(fmt.Sprintf("n%02d", i+1)), pos, conquest.UnclaimedID, typ, units); err != nil {
			return fmt.Errorf("generate map: %w", err)
		}
	}
	return nil
}

// freeSpot samples a point in the disk at least spacing away from every
// placed point, giving up after a bounded number of tries.
func freeSpot(rng *rand.Rand, radius, spacing float64, placed []conquest.Vec2) conquest.Vec2 {
	var p conquest.Vec2
	for try := 0; try < 64; try++ {
		r := radius * math.Sqrt(rng.Float64())
		a := rng.Float64() * 2 * math.Pi
		p = conquest.Vec2{X: r * math.Cos(a), Y: r * math.Sin(a)}
		ok := true
		for _, q := range placed {
			if p.Dist(q) < spacing {
				ok = false
				break
			}
		}
		if ok {
			return p
		}
	}
	return p
}

func cheapestHouse(cat *conquest.Catalog) string {
	best := ""
	bestCap := math.MaxInt
	for _, name := range cat.Names() {
		t, _ := cat.Get(name)
		if t.Kind == conquest.House && t.MaxCapacity < bestCap {
			best, bestCap = name, t.MaxCapacity
		}
	}
	return best
}
