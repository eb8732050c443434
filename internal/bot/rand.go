package bot

import "math/rand"

// botRng is the package-level random source used for match seeds and map
// layout when no seed is given. When nil, the functions below delegate to
// the global math/rand default. Use SeedBotRng for reproducible arenas.
var botRng *rand.Rand

// SeedBotRng sets a deterministic random source for reproducible matches.
func SeedBotRng(seed int64) {
	botRng = rand.New(rand.NewSource(seed))
}

// ResetBotRng reverts to the default (non-deterministic) global random source.
func ResetBotRng() {
	botRng = nil
}

func botInt63() int64 {
	if botRng != nil {
		return botRng.Int63()
	}
	return rand.Int63()
}

// NewSeed returns a fresh non-zero match seed.
func NewSeed() int64 {
	for {
		if s := botInt63(); s != 0 {
			return s
		}
	}
}
