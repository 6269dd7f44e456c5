package jsonpatch

import (
	"testing"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v
}

func mustEncode(t *testing.T, v any) string {
	t.Helper()
	b, err := Encode(v, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(b)
}

func TestMergeApply_RemovesAndMerges(t *testing.T) {
	base := mustDecode(t, `{"a":1,"b":{"x":1,"y":2},"c":[1,2]}`)
	patch := mustDecode(t, `{"a":2,"b":{"y":null,"z":3},"d":true}`)

	got := mustEncode(t, MergeApply(base, patch))
	want := `{"a":2,"b":{"x":1,"z":3},"c":[1,2],"d":true}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestMergeApply_NonObjectPatchReplaces(t *testing.T) {
	got := mustEncode(t, MergeApply(mustDecode(t, `{"a":1}`), mustDecode(t, `[1,2]`)))
	if got != `[1,2]` {
		t.Fatalf("got %s", got)
	}
	got = mustEncode(t, MergeApply(mustDecode(t, `"s"`), mustDecode(t, `{"a":{"b":null,"c":1}}`)))
	if got != `{"a":{"c":1}}` {
		t.Fatalf("got %s", got)
	}
}

func TestMergeApply_EmptyPatchIsNoop(t *testing.T) {
	x := mustDecode(t, `{"k":[1,{"z":null}],"n":0.5}`)
	before := mustEncode(t, x)
	if got := mustEncode(t, MergeApply(x, map[string]any{})); got != before {
		t.Fatalf("got %s want %s", got, before)
	}
}

func TestMergeDiff_RoundTrip(t *testing.T) {
	cases := []struct {
		from, to string
	}{
		{`{"a":1,"b":{"x":1,"y":2},"c":[1,2]}`, `{"a":2,"b":{"x":1,"z":3},"c":[1,2],"d":true}`},
		{`{"a":{"b":{"c":1}}}`, `{"a":{"b":{"d":[1,2,3]}}}`},
		{`{"a":1}`, `{}`},
		{`{}`, `{"deep":{"er":{"est":"x"}}}`},
		{`[1,2]`, `{"a":1}`},
		{`{"a":1}`, `"scalar"`},
		{`{"list":[{"id":1},{"id":2}]}`, `{"list":[{"id":2}]}`},
	}
	for _, tc := range cases {
		from := mustDecode(t, tc.from)
		to := mustDecode(t, tc.to)
		patch := MergeDiff(from, to)
		got := MergeApply(Clone(from), patch)
		if !Equal(got, to) {
			t.Fatalf("%s -> %s: patch %s produced %s", tc.from, tc.to, mustEncode(t, patch), mustEncode(t, got))
		}
	}
}

func TestMergeDiff_IdenticalAndTolerance(t *testing.T) {
	a := mustDecode(t, `{"v":1.0000000000001,"s":"x"}`)
	b := mustDecode(t, `{"v":1,"s":"x"}`)
	if got := mustEncode(t, MergeDiff(a, b)); got != `{}` {
		t.Fatalf("within tolerance diff=%s want {}", got)
	}
	if got := mustEncode(t, MergeDiff(mustDecode(t, `[1]`), mustDecode(t, `[1]`))); got != `[1]` {
		t.Fatalf("identical array diff=%s want [1]", got)
	}
	if got := mustEncode(t, MergeDiff(mustDecode(t, `{"v":1}`), mustDecode(t, `{"v":1.001}`))); got != `{"v":1.001}` {
		t.Fatalf("diff=%s", got)
	}
}

func TestEqual_LargeIntegersAreExact(t *testing.T) {
	a := mustDecode(t, `18446744073709551615`)
	b := mustDecode(t, `18446744073709551614`)
	if Equal(a, b) {
		t.Fatalf("distinct large integers compared equal")
	}
	if !Equal(a, mustDecode(t, `18446744073709551615`)) {
		t.Fatalf("identical large integers compared unequal")
	}
}

func TestDiff_JSONPatchRoundTrip(t *testing.T) {
	cases := []struct {
		from, to string
	}{
		{`{"a":1,"b":[1,2,3],"c":{"d":"x"}}`, `{"a":2,"b":[1],"c":{"e":"y"}}`},
		{`{"list":[1]}`, `{"list":[1,2,3]}`},
		{`{"a/b":1,"t~":2}`, `{"a/b":3}`},
		{`{"n":null}`, `{"n":[1]}`},
	}
	for _, tc := range cases {
		from := mustDecode(t, tc.from)
		to := mustDecode(t, tc.to)
		ops := Diff(from, to)
		got, err := ApplyPatch(from, ops)
		if err != nil {
			t.Fatalf("%s -> %s: apply: %v", tc.from, tc.to, err)
		}
		if !Equal(got, to) {
			t.Fatalf("%s -> %s: got %s", tc.from, tc.to, mustEncode(t, got))
		}
	}
}

func TestDiff_ArrayRemovalsBackToFront(t *testing.T) {
	ops := Diff(mustDecode(t, `[1,2,3,4]`), mustDecode(t, `[1]`))
	want := []string{"/3", "/2", "/1"}
	if len(ops) != len(want) {
		t.Fatalf("ops=%d want %d", len(ops), len(want))
	}
	for i, op := range ops {
		if op.Op != "remove" || op.Path != want[i] {
			t.Fatalf("op %d = %s %s want remove %s", i, op.Op, op.Path, want[i])
		}
	}
}

func TestApplyPatch_GenericFormAndErrors(t *testing.T) {
	doc := mustDecode(t, `{"a":1}`)
	patch := mustDecode(t, `[{"op":"add","path":"/b","value":2}]`)
	got, err := ApplyPatch(doc, patch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s := mustEncode(t, got); s != `{"a":1,"b":2}` {
		t.Fatalf("got %s", s)
	}

	if _, err := ApplyPatch(doc, map[string]any{"op": "add"}); err == nil {
		t.Fatalf("expected error for non-array patch")
	}
	if _, err := ApplyPatch(doc, mustDecode(t, `[{"op":"remove","path":"/missing"}]`)); err == nil {
		t.Fatalf("expected error removing a missing key")
	}

	got, err = ApplyPatch(doc, Diff(doc, mustDecode(t, `[true]`)))
	if err != nil {
		t.Fatalf("root replace: %v", err)
	}
	if s := mustEncode(t, got); s != `[true]` {
		t.Fatalf("root replace got %s", s)
	}
}
