package savejson

import (
	"bytes"
	"path/filepath"
	"testing"

	"nebula4x.dev/internal/sim/model"
)

func sampleState() *model.GameState {
	st := model.NewGameState()
	st.Date = model.Date(10)
	sys := &model.StarSystem{ID: 1, Name: "Sol"}
	st.Systems[1] = sys
	sh := model.NewShip()
	sh.ID = 2
	sh.Name = "Scout"
	sh.SystemID = 1
	sh.DesignID = "surveyor_beta"
	sh.HP = 20
	st.Ships[2] = &sh
	sys.Ships = []model.ID{2}
	st.Orders(2).Queue = model.OrderList{&model.WaitDays{DaysRemaining: 3}, &model.MoveToPoint{Target: model.Vec2{X: 1, Y: 2}}}
	st.Events = append(st.Events, model.SimEvent{Seq: 4, Day: 10, Message: "hello"})
	st.NextID = 3
	st.NextEventSeq = 5
	return st
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	st := sampleState()
	b, err := Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b2, err := Marshal(back)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if !bytes.Equal(b, b2) {
		t.Fatalf("round trip changed the document:\n%s\n---\n%s", b, b2)
	}
	if got := back.Orders(2).Queue[1].Kind(); got != model.OrderMoveToPoint {
		t.Fatalf("second order kind=%v", got)
	}
}

func TestUnmarshal_CountersAsStrings(t *testing.T) {
	doc := `{"save_version":3,"date":"2200-01-05","hour_of_day":30,"next_id":"17","next_event_seq":"18446744073709551000","events":[]}`
	st, err := Unmarshal([]byte(doc))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.NextID != 17 {
		t.Fatalf("next_id=%d want 17", st.NextID)
	}
	if st.NextEventSeq != 18446744073709551000 {
		t.Fatalf("next_event_seq=%d", st.NextEventSeq)
	}
	if st.SaveVersion != model.SaveVersion {
		t.Fatalf("save_version=%d want %d", st.SaveVersion, model.SaveVersion)
	}
	if st.HourOfDay != 23 {
		t.Fatalf("hour_of_day=%d want clamp to 23", st.HourOfDay)
	}
	if st.Ships == nil || st.ShipOrders == nil {
		t.Fatalf("maps not created")
	}
}

func TestUnmarshal_EventSeqBackfill(t *testing.T) {
	doc := `{"date":"2200-01-01","next_event_seq":1,"events":[{"seq":9,"day":0,"hour":0,"level":"info","category":"general","message":"x"}]}`
	st, err := Unmarshal([]byte(doc))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.NextEventSeq != 10 {
		t.Fatalf("next_event_seq=%d want 10", st.NextEventSeq)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	cases := []string{
		`[]`,
		`{"next_id":1}`,
		`{"date":"2200-01-01","next_id":"abc"}`,
		`{"date":"not-a-date"}`,
	}
	for _, doc := range cases {
		if _, err := Unmarshal([]byte(doc)); err == nil {
			t.Fatalf("expected error for %s", doc)
		}
	}
}

func TestCanonicalize_StableDigest(t *testing.T) {
	b, err := Marshal(sampleState())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c1, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	c2, err := Canonicalize(c1)
	if err != nil {
		t.Fatalf("canonicalize twice: %v", err)
	}
	if !bytes.Equal(c1, c2) {
		t.Fatalf("canonicalize is not idempotent")
	}
	d1, _ := StateDigestHex(b)
	d2, _ := StateDigestHex(c2)
	if d1 != d2 || len(d1) != 16 {
		t.Fatalf("digests %q vs %q", d1, d2)
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "game.json")
	if err := WriteFile(path, sampleState()); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Ships[2] == nil || st.Ships[2].Name != "Scout" {
		t.Fatalf("ship not restored: %+v", st.Ships[2])
	}
}
