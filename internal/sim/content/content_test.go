package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_LoadsCrossReferencedContent(t *testing.T) {
	db := Default()
	for _, id := range []string{"freighter_alpha", "surveyor_beta", "escort_gamma", "pirate_raider", "colony_ship_mk1"} {
		if db.Designs[id] == nil {
			t.Fatalf("missing design %q", id)
		}
	}
	for _, id := range []string{"automated_mine", "construction_factory", "shipyard", "research_lab", "sensor_station"} {
		if db.Installations[id] == nil {
			t.Fatalf("missing installation %q", id)
		}
	}
	if got := db.ResourceCategory("Sorium"); got != "volatile" {
		t.Fatalf("Sorium category: got %q want volatile", got)
	}
	if got := db.ResourceCategory("Unobtainium"); got != "mineral" {
		t.Fatalf("unknown category: got %q want mineral", got)
	}
	if !db.Designs["escort_gamma"].Armed() || db.Designs["freighter_alpha"].Armed() {
		t.Fatalf("Armed() disagrees with design weapons")
	}
}

func TestLoad_RejectsEmptyID(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("designs.json", `[{"id":"","name":"broken"}]`)
	write("installations.json", `[]`)
	write("resources.json", `[]`)
	write("techs.json", `[]`)

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "designs.json: empty id") {
		t.Fatalf("expected empty id error, got %v", err)
	}
}

func TestLoad_RejectsUnknownPrereq(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"designs.json":       `[]`,
		"installations.json": `[]`,
		"resources.json":     `[]`,
		"techs.json":         `[{"id":"a","cost":1,"prereqs":["nope"]}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected prereq error")
	}
}

func TestLoadLayers_LaterLayersWin(t *testing.T) {
	base := t.TempDir()
	files := map[string]string{
		"designs.json":       `[{"id":"hauler","name":"Hauler","cargo_tons":100}]`,
		"installations.json": `[{"id":"lab","name":"Lab"}]`,
		"resources.json":     `[]`,
		"techs.json":         `[{"id":"a","cost":10}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(base, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mod := t.TempDir()
	files["designs.json"] = `[{"id":"hauler","name":"Big Hauler","cargo_tons":900}]`
	files["techs.json"] = `[]`
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(mod, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	techFile := filepath.Join(t.TempDir(), "extra_techs.json")
	if err := os.WriteFile(techFile, []byte(`[{"id":"b","cost":20,"prereqs":["a"],"unlock_installations":["lab"]}]`), 0o644); err != nil {
		t.Fatalf("write tech file: %v", err)
	}

	db, err := LoadLayers([]string{base, mod}, []string{techFile})
	if err != nil {
		t.Fatalf("LoadLayers: %v", err)
	}
	if got := db.Designs["hauler"].CargoTons; got != 900 {
		t.Fatalf("hauler cargo=%v want 900", got)
	}
	if db.Techs["a"] == nil || db.Techs["b"] == nil {
		t.Fatalf("techs=%v", sortedIDs(db.Techs))
	}

	if _, err := LoadLayers(nil, []string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("expected error for missing tech file")
	}
	if db, err := LoadLayers(nil, nil); err != nil || db.Designs["escort_gamma"] == nil {
		t.Fatalf("defaults: err=%v", err)
	}
}
