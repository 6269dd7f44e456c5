// Package mathx holds the small deterministic helpers shared by scenario
// generation, the trade model and the duel runner.
package mathx

// Mix64 is the splitmix64 finalizer.
func Mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// U01 maps the top 53 bits of x onto [0,1).
func U01(x uint64) float64 {
	return float64(x>>11) * (1.0 / 9007199254740992.0)
}

// HashUnit is U01(Mix64(x)).
func HashUnit(x uint64) float64 { return U01(Mix64(x)) }

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Rand is a splitmix64 stream. The zero value is a valid stream seeded 0.
type Rand struct {
	s uint64
}

func NewRand(seed uint64) *Rand { return &Rand{s: seed} }

func (r *Rand) Uint64() uint64 {
	r.s = Mix64(r.s)
	return r.s
}

func (r *Rand) Float64() float64 { return U01(r.Uint64()) }

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + (hi-lo)*r.Float64()
}

// Intn returns an unbiased value in [0, n).
func (r *Rand) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	bound := uint64(n)
	threshold := -bound % bound
	for {
		if v := r.Uint64(); v >= threshold {
			return int(v % bound)
		}
	}
}

// RangeInt returns a value in [lo, hi], inclusive.
func (r *Rand) RangeInt(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.Intn(hi-lo+1)
}
