package verdict

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Default bounds of the prosecution win percentage.
const (
	DefaultMinPct = 40
	DefaultMaxPct = 80
)

// OddsPolicy decides the prosecution's win percentage. The defense gets the
// remainder to 100.
type OddsPolicy interface {
	ProsecutionPct() int
}

// FixedOdds always returns the same percentage.
type FixedOdds int

// ProsecutionPct implements OddsPolicy.
func (f FixedOdds) ProsecutionPct() int { return int(f) }

// RandomOdds draws uniformly from [Min, Max] inclusive. Safe for concurrent
// use.
type RandomOdds struct {
	min, max int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomOdds returns a policy seeded from the runtime's random source.
func NewRandomOdds(minPct, maxPct int) (*RandomOdds, error) {
	return newRandomOdds(minPct, maxPct, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededOdds returns a policy whose sequence is fully determined by seed.
func NewSeededOdds(minPct, maxPct int, seed uint64) (*RandomOdds, error) {
	return newRandomOdds(minPct, maxPct, rand.NewPCG(seed, seed))
}

func newRandomOdds(minPct, maxPct int, src rand.Source) (*RandomOdds, error) {
	if err := ValidateRange(minPct, maxPct); err != nil {
		return nil, err
	}
	return &RandomOdds{min: minPct, max: maxPct, rng: rand.New(src)}, nil
}

// ProsecutionPct implements OddsPolicy.
func (r *RandomOdds) ProsecutionPct() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.min + r.rng.IntN(r.max-r.min+1)
}

// ValidateRange reports whether [minPct, maxPct] is a usable percentage range.
func ValidateRange(minPct, maxPct int) error {
	if minPct < 0 || maxPct > 100 || minPct > maxPct {
		return fmt.Errorf("verdict: invalid odds range [%d, %d]: want 0 <= min <= max <= 100", minPct, maxPct)
	}
	return nil
}
