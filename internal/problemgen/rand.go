package problemgen

import "math/rand/v2"

// Rand is the random source used by the engine. Float64 returns a value in
// [0, 1).
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand returns the process-wide random source.
func DefaultRand() Rand { return globalRand{} }

// LCG is a 32-bit linear congruential generator. It makes generation
// reproducible for a given seed. It is not safe for concurrent use.
type LCG struct {
	state uint32
}

// NewLCG seeds an LCG from the djb2 hash of seed.
func NewLCG(seed string) *LCG {
	return &LCG{state: HashString(seed)}
}

// Float64 advances the generator: state = 1664525*state + 1013904223 mod 2^32.
func (g *LCG) Float64() float64 {
	g.state = 1664525*g.state + 1013904223
	return float64(g.state) / 4294967296.0
}

// HashString is the 32-bit djb2 hash (h = h*33 + c, starting at 5381) over
// the UTF-16 code units of s.
func HashString(s string) uint32 {
	h := uint32(5381)
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = h*33 + uint32(0xD800+(r>>10))
			h = h*33 + uint32(0xDC00+(r&0x3FF))
			continue
		}
		h = h*33 + uint32(r)
	}
	return h
}

// intn draws an index in [0, n). It does not consume randomness when there
// is only one choice.
func intn(r Rand, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
