package digest

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nebula4x.dev/internal/sim/model"
)

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211

	canonicalNaN uint64 = 0x7ff8000000000000
)

// hasher is a streaming FNV-1a 64 over little-endian encodings.
type hasher struct {
	h   uint64
	tmp [8]byte
}

func newHasher() *hasher { return &hasher{h: fnvOffset64} }

func (w *hasher) Sum64() uint64 { return w.h }

func (w *hasher) bytes(b []byte) {
	h := w.h
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	w.h = h
}

func (w *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.tmp[:], v)
	w.bytes(w.tmp[:])
}

func (w *hasher) i64(v int64) { w.u64(uint64(v)) }
func (w *hasher) int(v int) { w.u64(uint64(int64(v))) }
func (w *hasher) id(v model.ID) { w.u64(uint64(v)) }

func (w *hasher) bool(v bool) {
	if v {
		w.bytes([]byte{1})
		return
	}
	w.bytes([]byte{0})
}

// f64 feeds the IEEE-754 bits with -0 folded into +0 and every NaN folded
// into the canonical quiet NaN.
func (w *hasher) f64(v float64) {
	w.u64(canonicalFloatBits(v))
}

func canonicalFloatBits(v float64) uint64 {
	if math.IsNaN(v) {
		return canonicalNaN
	}
	if v == 0 {
		return 0
	}
	return math.Float64bits(v)
}

func (w *hasher) str(s string) {
	w.u64(uint64(len(s)))
	w.bytes([]byte(s))
}

func (w *hasher) vec2(v model.Vec2) {
	w.f64(v.X)
	w.f64(v.Y)
}

// idSet feeds a set-like id list: sorted, deduplicated, size-prefixed.
func (w *hasher) idSet(ids []model.ID) {
	cp := model.SortUniqueIDs(append([]model.ID(nil), ids...))
	w.u64(uint64(len(cp)))
	for _, v := range cp {
		w.id(v)
	}
}

func (w *hasher) strSet(v []string) {
	cp := model.SortUnique(append([]string(nil), v...))
	w.u64(uint64(len(cp)))
	for _, s := range cp {
		w.str(s)
	}
}

// strQueue feeds an order-sensitive string list.
func (w *hasher) strQueue(v []string) {
	w.u64(uint64(len(v)))
	for _, s := range v {
		w.str(s)
	}
}

func (w *hasher) floatMap(m map[string]float64) {
	w.u64(uint64(len(m)))
	for _, k := range model.SortedKeys(m) {
		w.str(k)
		w.f64(m[k])
	}
}

func (w *hasher) intMap(m map[string]int) {
	w.u64(uint64(len(m)))
	for _, k := range model.SortedKeys(m) {
		w.str(k)
		w.int(m[k])
	}
}

// Hex formats a digest as 16 lowercase hex digits.
func Hex(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// ParseHex accepts up to 16 hex digits with an optional 0x prefix.
func ParseHex(s string) (uint64, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	if t == "" || len(t) > 16 {
		return 0, fmt.Errorf("invalid digest hex %q", s)
	}
	v, err := strconv.ParseUint(t, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid digest hex %q", s)
	}
	return v, nil
}
