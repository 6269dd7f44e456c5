package jsonpatch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	evpatch "github.com/evanphx/json-patch/v5"
)

// Operation is one RFC 6902 operation. Diff only emits add, remove and
// replace.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`

	hasValue bool
}

func (o Operation) MarshalJSON() ([]byte, error) {
	m := map[string]any{"op": o.Op, "path": o.Path}
	if o.hasValue || o.Value != nil {
		m["value"] = o.Value
	}
	return json.Marshal(m)
}

// Diff returns an RFC 6902 patch turning from into to. Object keys are walked
// in sorted order; array tails are removed back to front so the operations
// stay valid when applied in sequence.
func Diff(from, to any) []Operation {
	ops := []Operation{}
	diffInto(&ops, from, to, "")
	return ops
}

func diffInto(ops *[]Operation, a, b any, path string) {
	if Equal(a, b) {
		return
	}
	aa, aArr := a.([]any)
	ba, bArr := b.([]any)
	if aArr && bArr {
		n := min(len(aa), len(ba))
		for i := 0; i < n; i++ {
			diffInto(ops, aa[i], ba[i], path+"/"+strconv.Itoa(i))
		}
		for i := len(aa) - 1; i >= len(ba); i-- {
			*ops = append(*ops, Operation{Op: "remove", Path: path + "/" + strconv.Itoa(i)})
		}
		for i := len(aa); i < len(ba); i++ {
			*ops = append(*ops, Operation{Op: "add", Path: path + "/" + strconv.Itoa(i), Value: Clone(ba[i]), hasValue: true})
		}
		return
	}
	ao, aObj := a.(map[string]any)
	bo, bObj := b.(map[string]any)
	if aObj && bObj {
		keys := sortedKeys(ao)
		for _, k := range sortedKeys(bo) {
			if _, ok := ao[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			av, inA := ao[k]
			bv, inB := bo[k]
			p := path + "/" + EscapePointer(k)
			switch {
			case inA && inB:
				diffInto(ops, av, bv, p)
			case inB:
				*ops = append(*ops, Operation{Op: "add", Path: p, Value: Clone(bv), hasValue: true})
			default:
				*ops = append(*ops, Operation{Op: "remove", Path: p})
			}
		}
		return
	}
	*ops = append(*ops, Operation{Op: "replace", Path: path, Value: Clone(b), hasValue: true})
}

// EscapePointer escapes one RFC 6901 reference token.
func EscapePointer(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}

// ApplyPatch applies an RFC 6902 patch (an array of operations in generic or
// typed form) to doc and returns the patched generic document.
func ApplyPatch(doc, patch any) (any, error) {
	if _, ok := patch.([]any); !ok {
		if _, ok := patch.([]Operation); !ok {
			return nil, fmt.Errorf("json patch must be an array, got %T", patch)
		}
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	p, err := evpatch.DecodePatch(patchBytes)
	if err != nil {
		return nil, fmt.Errorf("json patch: %w", err)
	}
	// A whole-document replace has an empty path, which the library rejects.
	if root, ok := rootReplacement(patch); ok {
		return Clone(root), nil
	}
	out, err := p.Apply(docBytes)
	if err != nil {
		return nil, fmt.Errorf("json patch: %w", err)
	}
	return Decode(out)
}

func rootReplacement(patch any) (any, bool) {
	switch ops := patch.(type) {
	case []Operation:
		if len(ops) == 1 && ops[0].Op == "replace" && ops[0].Path == "" {
			return ops[0].Value, true
		}
	case []any:
		if len(ops) != 1 {
			return nil, false
		}
		m, ok := ops[0].(map[string]any)
		if ok && m["op"] == "replace" && m["path"] == "" {
			return m["value"], true
		}
	}
	return nil, false
}

// OperationsToValue converts typed operations into the generic form stored
// inside delta-save files.
func OperationsToValue(ops []Operation) (any, error) {
	return Normalize(ops)
}
