package content

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// DB is the loaded content database. Simulation code treats it as
// read-only; ship designs created during play live in the game state.
type DB struct {
	Designs       map[string]*ShipDesign
	Installations map[string]*InstallationDef
	Resources     map[string]*ResourceDef
	Techs         map[string]*TechDef
	Components    map[string]*ComponentDef
}

type ShipRole string

const (
	RoleFreighter ShipRole = "freighter"
	RoleSurveyor  ShipRole = "surveyor"
	RoleCombatant ShipRole = "combatant"
	RoleUnknown   ShipRole = "unknown"
)

type ShipDesign struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       ShipRole `json:"role"`
	Components []string `json:"components,omitempty"`

	MassTons               float64 `json:"mass_tons"`
	SpeedKmS               float64 `json:"speed_km_s"`
	FuelCapacityTons       float64 `json:"fuel_capacity_tons"`
	FuelUsePerMkm          float64 `json:"fuel_use_per_mkm"`
	CargoTons              float64 `json:"cargo_tons"`
	MiningTonsPerDay       float64 `json:"mining_tons_per_day,omitempty"`
	SensorRangeMkm         float64 `json:"sensor_range_mkm"`
	ColonyCapacityMillions float64 `json:"colony_capacity_millions,omitempty"`

	PowerGeneration float64 `json:"power_generation"`
	PowerUseEngines float64 `json:"power_use_engines"`
	PowerUseSensors float64 `json:"power_use_sensors"`
	PowerUseWeapons float64 `json:"power_use_weapons"`
	PowerUseShields float64 `json:"power_use_shields"`

	MaxHP             float64 `json:"max_hp"`
	MaxShields        float64 `json:"max_shields"`
	ShieldRegenPerDay float64 `json:"shield_regen_per_day"`

	WeaponDamage          float64 `json:"weapon_damage"`
	WeaponRangeMkm        float64 `json:"weapon_range_mkm"`
	MissileDamage         float64 `json:"missile_damage,omitempty"`
	MissileRangeMkm       float64 `json:"missile_range_mkm,omitempty"`
	MissileSpeedMkmPerDay float64 `json:"missile_speed_mkm_per_day,omitempty"`
	MissileReloadDays     float64 `json:"missile_reload_days,omitempty"`
	MissileLauncherCount  int     `json:"missile_launcher_count,omitempty"`
	MissileAmmoCapacity   int     `json:"missile_ammo_capacity,omitempty"`
	PointDefenseDamage    float64 `json:"point_defense_damage,omitempty"`
	PointDefenseRangeMkm  float64 `json:"point_defense_range_mkm,omitempty"`
	TroopCapacity         float64 `json:"troop_capacity,omitempty"`
}

// Armed reports whether the design carries beams or missiles.
func (d *ShipDesign) Armed() bool {
	return d.WeaponDamage > 0 || d.MissileDamage > 0
}

type InstallationDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Mining           bool               `json:"mining,omitempty"`
	MiningTonsPerDay float64            `json:"mining_tons_per_day,omitempty"`
	ProducesPerDay   map[string]float64 `json:"produces_per_day,omitempty"`
	ConsumesPerDay   map[string]float64 `json:"consumes_per_day,omitempty"`

	ConstructionPointsPerDay float64            `json:"construction_points_per_day,omitempty"`
	ConstructionCost         float64            `json:"construction_cost"`
	BuildCosts               map[string]float64 `json:"build_costs,omitempty"`
	BuildRateTonsPerDay      float64            `json:"build_rate_tons_per_day,omitempty"`
	BuildCostsPerTon         map[string]float64 `json:"build_costs_per_ton,omitempty"`

	SensorRangeMkm       float64 `json:"sensor_range_mkm,omitempty"`
	WeaponDamage         float64 `json:"weapon_damage,omitempty"`
	WeaponRangeMkm       float64 `json:"weapon_range_mkm,omitempty"`
	PointDefenseDamage   float64 `json:"point_defense_damage,omitempty"`
	ResearchPointsPerDay float64 `json:"research_points_per_day,omitempty"`
	FortificationPoints  float64 `json:"fortification_points,omitempty"`
}

type ResourceDef struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Category                string  `json:"category"` // metal, mineral, volatile, exotic
	Mineable                bool    `json:"mineable"`
	SalvageResearchRPPerTon float64 `json:"salvage_research_rp_per_ton,omitempty"`
}

type TechDef struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Cost                float64  `json:"cost"`
	Prereqs             []string `json:"prereqs,omitempty"`
	UnlockComponents    []string `json:"unlock_components,omitempty"`
	UnlockInstallations []string `json:"unlock_installations,omitempty"`
}

type ComponentDef struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	MassTons float64 `json:"mass_tons"`
}

//go:embed defaults/*.json
var defaultsFS embed.FS

// Default returns the built-in content set.
func Default() *DB {
	db, err := LoadFS(defaultsFS, "defaults")
	if err != nil {
		panic(fmt.Sprintf("content: embedded defaults: %v", err))
	}
	return db
}

// Load reads designs.json, installations.json, resources.json and
// techs.json from dir. components.json is optional.
func Load(dir string) (*DB, error) {
	return LoadFS(os.DirFS(dir), ".")
}

func LoadFS(fsys fs.FS, dir string) (*DB, error) {
	db := &DB{}
	var err error
	if db.Designs, err = loadDefs(fsys, dir, "designs.json", false, func(d *ShipDesign) string { return d.ID }); err != nil {
		return nil, err
	}
	if db.Installations, err = loadDefs(fsys, dir, "installations.json", false, func(d *InstallationDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if db.Resources, err = loadDefs(fsys, dir, "resources.json", false, func(d *ResourceDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if db.Techs, err = loadDefs(fsys, dir, "techs.json", false, func(d *TechDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if db.Components, err = loadDefs(fsys, dir, "components.json", true, func(d *ComponentDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := db.check(); err != nil {
		return nil, err
	}
	return db, nil
}

// LoadLayers loads each content directory in order, letting later
// definitions replace earlier ones with the same id, then overlays each tech
// file. With no directories the embedded defaults form the base layer.
func LoadLayers(dirs, techFiles []string) (*DB, error) {
	db := Default()
	for i, dir := range dirs {
		layer, err := LoadFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		if i == 0 {
			db = layer
			continue
		}
		overlay(db.Designs, layer.Designs)
		overlay(db.Installations, layer.Installations)
		overlay(db.Resources, layer.Resources)
		overlay(db.Techs, layer.Techs)
		overlay(db.Components, layer.Components)
	}
	for _, file := range techFiles {
		techs, err := loadDefs(os.DirFS(filepath.Dir(file)), ".", filepath.Base(file), false, func(d *TechDef) string { return d.ID })
		if err != nil {
			return nil, err
		}
		overlay(db.Techs, techs)
	}
	if err := db.check(); err != nil {
		return nil, err
	}
	return db, nil
}

func overlay[T any](dst, src map[string]*T) {
	for id, v := range src {
		dst[id] = v
	}
}

func loadDefs[T any](fsys fs.FS, dir, name string, optional bool, idOf func(*T) string) (map[string]*T, error) {
	out := map[string]*T{}
	raw, err := fs.ReadFile(fsys, path.Join(dir, name))
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	var defs []*T
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for _, d := range defs {
		id := idOf(d)
		if id == "" {
			return nil, fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%s: duplicate id %q", name, id)
		}
		out[id] = d
	}
	return out, nil
}

// check verifies cross references between the files.
func (db *DB) check() error {
	for _, id := range sortedIDs(db.Techs) {
		t := db.Techs[id]
		for _, p := range t.Prereqs {
			if _, ok := db.Techs[p]; !ok {
				return fmt.Errorf("techs.json: %s: unknown prereq %q", id, p)
			}
		}
		for _, inst := range t.UnlockInstallations {
			if _, ok := db.Installations[inst]; !ok {
				return fmt.Errorf("techs.json: %s: unknown installation %q", id, inst)
			}
		}
	}
	for _, id := range sortedIDs(db.Designs) {
		d := db.Designs[id]
		if d.MaxHP < 0 || d.FuelCapacityTons < 0 || d.CargoTons < 0 {
			return fmt.Errorf("designs.json: %s: negative capacity", id)
		}
	}
	return nil
}

func sortedIDs[T any](m map[string]*T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResourceCategory returns the trade category of a resource, defaulting to
// "mineral" for unknown ids.
func (db *DB) ResourceCategory(id string) string {
	if db != nil {
		if r := db.Resources[id]; r != nil && r.Category != "" {
			return r.Category
		}
	}
	return "mineral"
}
