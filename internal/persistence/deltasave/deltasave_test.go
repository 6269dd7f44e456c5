package deltasave

import (
	"errors"
	"testing"

	"nebula4x.dev/internal/persistence/savejson"
	"nebula4x.dev/internal/sim/model"
)

func snapshots(t *testing.T) [][]byte {
	t.Helper()
	st := model.NewGameState()
	st.Systems[1] = &model.StarSystem{ID: 1, Name: "Sol", Ships: []model.ID{2}}
	sh := model.NewShip()
	sh.ID, sh.Name, sh.SystemID, sh.DesignID, sh.HP = 2, "Scout", 1, "surveyor_beta", 20
	st.Ships[2] = &sh
	st.NextID = 3

	var out [][]byte
	emit := func() {
		b, err := savejson.Marshal(st)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out = append(out, b)
	}
	emit()

	st.Date = st.Date.AddDays(5)
	st.Ships[2].PositionMkm = model.Vec2{X: 12.5, Y: -3}
	st.Events = append(st.Events, model.SimEvent{Seq: 1, Day: 5, Message: "moved"})
	st.NextEventSeq = 2
	emit()

	st.Date = st.Date.AddDays(3)
	delete(st.Ships, 2)
	st.Systems[1].Ships = nil
	st.Systems[4] = &model.StarSystem{ID: 4, Name: "Alpha Centauri"}
	st.NextID = 5
	emit()
	return out
}

func mustDigest(t *testing.T, b []byte) string {
	t.Helper()
	d, err := savejson.StateDigestHex(b)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	return d
}

func reconstructedDigest(t *testing.T, f *File, n int) string {
	t.Helper()
	b, err := f.ReconstructJSON(n, 0)
	if err != nil {
		t.Fatalf("reconstruct %d: %v", n, err)
	}
	return mustDigest(t, b)
}

func TestMakeAppendReconstruct(t *testing.T) {
	for _, kind := range []PatchKind{MergePatch, JSONPatch} {
		snaps := snapshots(t)
		f, err := Make(snaps[0], snaps[1], kind)
		if err != nil {
			t.Fatalf("%s: make: %v", kind, err)
		}
		if err := f.Append(snaps[2]); err != nil {
			t.Fatalf("%s: append: %v", kind, err)
		}
		if len(f.Patches) != 2 {
			t.Fatalf("%s: patches=%d want 2", kind, len(f.Patches))
		}
		if f.BaseStateDigest != mustDigest(t, snaps[0]) {
			t.Fatalf("%s: base digest mismatch", kind)
		}
		for k := 0; k <= 2; k++ {
			want := mustDigest(t, snaps[k])
			if got := reconstructedDigest(t, f, k); got != want {
				t.Fatalf("%s: index %d digest %s want %s", kind, k, got, want)
			}
			if k > 0 && f.Patches[k-1].StateDigest != want {
				t.Fatalf("%s: recorded digest %d = %s want %s", kind, k, f.Patches[k-1].StateDigest, want)
			}
		}
		if got := reconstructedDigest(t, f, -1); got != mustDigest(t, snaps[2]) {
			t.Fatalf("%s: latest digest mismatch", kind)
		}
	}
}

func TestConvertAndSquashPreserveFinalDigest(t *testing.T) {
	snaps := snapshots(t)
	f, err := Make(snaps[0], snaps[1], MergePatch)
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if err := f.Append(snaps[2]); err != nil {
		t.Fatalf("append: %v", err)
	}
	want := mustDigest(t, snaps[2])

	conv, err := f.ConvertKind(JSONPatch)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if conv.Format != FormatV2 || conv.PatchKind != JSONPatch {
		t.Fatalf("convert format=%s kind=%s", conv.Format, conv.PatchKind)
	}
	if got := reconstructedDigest(t, conv, 2); got != want {
		t.Fatalf("converted digest %s want %s", got, want)
	}

	sq, err := f.Squash(0, MergePatch)
	if err != nil {
		t.Fatalf("squash: %v", err)
	}
	if len(sq.Patches) != 1 {
		t.Fatalf("squash patches=%d want 1", len(sq.Patches))
	}
	if sq.Patches[0].StateDigest != want {
		t.Fatalf("squash digest %s want %s", sq.Patches[0].StateDigest, want)
	}

	same, err := f.Squash(2, JSONPatch)
	if err != nil {
		t.Fatalf("squash at end: %v", err)
	}
	if len(same.Patches) != 0 {
		t.Fatalf("identical squash emitted %d patches", len(same.Patches))
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	snaps := snapshots(t)
	for _, kind := range []PatchKind{MergePatch, JSONPatch} {
		f, err := Make(snaps[0], snaps[2], kind)
		if err != nil {
			t.Fatalf("make: %v", err)
		}
		b, err := f.Encode(2)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		g, err := Parse(b)
		if err != nil {
			t.Fatalf("%s: parse: %v", kind, err)
		}
		if g.Format != f.Format || len(g.Patches) != 1 {
			t.Fatalf("%s: parsed format=%s patches=%d", kind, g.Format, len(g.Patches))
		}
		if got := reconstructedDigest(t, g, -1); got != mustDigest(t, snaps[2]) {
			t.Fatalf("%s: parsed digest mismatch", kind)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		doc  string
		want error
		msg  string
	}{
		{`{"format":"nebula4x.delta_save.v9","base":{},"patches":[]}`, ErrUnsupportedFormat, "unsupported delta-save format: nebula4x.delta_save.v9"},
		{`{"patches":[]}`, ErrMissingKey, "delta-save missing key: base"},
		{`{"base":{}}`, ErrMissingKey, "delta-save missing key: patches"},
		{`{"format":"nebula4x.delta_save.v1","patch_kind":"json_patch","base":{},"patches":[]}`, ErrUnsupportedPatchKind, ""},
		{`{"base":{},"patches":{}}`, ErrMalformed, ""},
		{`{"base":{},"patches":[],"base_state_digest":"xyz"}`, ErrMalformed, ""},
		{`[1]`, ErrMalformed, ""},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.doc, err, tc.want)
		}
		if tc.msg != "" && err.Error() != tc.msg {
			t.Fatalf("%s: message %q want %q", tc.doc, err.Error(), tc.msg)
		}
	}
}

func TestParse_BarePatchValues(t *testing.T) {
	doc := `{"base":{"date":"2200-01-01","next_id":1},"patches":[{"date":"2200-01-03"}]}`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatalf("object entry without 'patch' should be rejected")
	}

	doc = `{"format":"nebula4x.delta_save.v2","patch_kind":"json_patch","base":{"date":"2200-01-01","next_id":1},` +
		`"patches":[[{"op":"replace","path":"/date","value":"2200-01-03"}]]}`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := f.Reconstruct(-1)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if got := v.(map[string]any)["date"]; got != "2200-01-03" {
		t.Fatalf("date=%v", got)
	}
	if err := f.ComputeDigests(); err != nil {
		t.Fatalf("digests: %v", err)
	}
	if f.Patches[0].StateDigest == "" || f.BaseStateDigest == f.Patches[0].StateDigest {
		t.Fatalf("digests not refreshed: base=%s patch=%s", f.BaseStateDigest, f.Patches[0].StateDigest)
	}
}
