// Package jsonpatch works on generic JSON documents: decoding with exact
// numbers, tolerant equality, RFC 7396 merge patches and RFC 6902 patches.
package jsonpatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// NumericTolerance is the absolute tolerance used when comparing numbers.
const NumericTolerance = 1e-9

// Decode parses data into a generic value. Numbers stay json.Number so ids
// and sequence counters round-trip exactly.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// Encode serializes v with sorted object keys. indent <= 0 is compact.
func Encode(v any, indent int) ([]byte, error) {
	if indent <= 0 {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", strings.Repeat(" ", indent))
}

// Normalize converts a typed value into the generic representation.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Equal compares two generic values; numbers match within NumericTolerance.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case json.Number, float64, int, int64, uint64:
		if !isNumber(b) {
			return false
		}
		return numbersEqual(a, b)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for _, k := range sortedKeys(av) {
			bvv, ok := bv[k]
			if !ok || !Equal(av[k], bvv) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone deep-copies a generic value.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Clone(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	default:
		return v
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, int, int64, uint64:
		return true
	}
	return false
}

func numberText(v any) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return fmt.Sprint(v)
}

func isIntegerText(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".eE")
}

// numbersEqual compares integers exactly (ids and counters can exceed 2^53)
// and everything else as doubles within the tolerance.
func numbersEqual(a, b any) bool {
	as, bs := numberText(a), numberText(b)
	if as == bs {
		return true
	}
	if isIntegerText(as) && isIntegerText(bs) {
		ai, aok := new(big.Int).SetString(as, 10)
		bi, bok := new(big.Int).SetString(bs, 10)
		if aok && bok {
			return ai.Cmp(bi) == 0
		}
	}
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr != nil || berr != nil {
		return false
	}
	return math.Abs(af-bf) < NumericTolerance
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
