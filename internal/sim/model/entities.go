package model

import "encoding/json"

type StarSystem struct {
	ID             ID      `json:"id"`
	Name           string  `json:"name"`
	RegionID       ID      `json:"region_id,omitempty"`
	GalaxyPos      Vec2    `json:"galaxy_pos"`
	NebulaDensity  float64 `json:"nebula_density,omitempty"`
	StormIntensity float64 `json:"storm_peak_intensity,omitempty"`
	StormStartDay  int64   `json:"storm_start_day,omitempty"`
	StormEndDay    int64   `json:"storm_end_day,omitempty"`

	// Set-like.
	Bodies     []ID `json:"bodies"`
	Ships      []ID `json:"ships"`
	JumpPoints []ID `json:"jump_points"`
}

type Region struct {
	ID                   ID      `json:"id"`
	Name                 string  `json:"name"`
	Center               Vec2    `json:"center"`
	Theme                string  `json:"theme,omitempty"`
	MineralRichnessMult  float64 `json:"mineral_richness_mult"`
	VolatileRichnessMult float64 `json:"volatile_richness_mult"`
	SalvageRichnessMult  float64 `json:"salvage_richness_mult"`
	PirateRisk           float64 `json:"pirate_risk"`
	PirateSuppression    float64 `json:"pirate_suppression"`
	RuinsDensity         float64 `json:"ruins_density,omitempty"`
}

type Body struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Type         BodyType `json:"type"`
	SystemID     ID       `json:"system_id"`
	ParentBodyID ID       `json:"parent_body_id,omitempty"`

	OrbitRadiusMkm           float64 `json:"orbit_radius_mkm"`
	OrbitPeriodDays          float64 `json:"orbit_period_days"`
	OrbitPhaseRadians        float64 `json:"orbit_phase_radians"`
	OrbitEccentricity        float64 `json:"orbit_eccentricity,omitempty"`
	OrbitArgPeriapsisRadians float64 `json:"orbit_arg_periapsis_radians,omitempty"`

	MassEarths    float64 `json:"mass_earths,omitempty"`
	RadiusKm      float64 `json:"radius_km,omitempty"`
	SurfaceTempK  float64 `json:"surface_temp_k,omitempty"`
	AtmosphereAtm float64 `json:"atmosphere_atm,omitempty"`

	PositionMkm     Vec2               `json:"position_mkm"`
	MineralDeposits map[string]float64 `json:"mineral_deposits,omitempty"`
}

// SurfaceGravityG approximates gravity from mass and radius, relative to Earth.
func (b *Body) SurfaceGravityG() float64 {
	if b.MassEarths <= 0 || b.RadiusKm <= 0 {
		return 0
	}
	r := b.RadiusKm / 6371.0
	return b.MassEarths / (r * r)
}

type JumpPoint struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	SystemID     ID     `json:"system_id"`
	PositionMkm  Vec2   `json:"position_mkm"`
	LinkedJumpID ID     `json:"linked_jump_id"`
}

type ShipPowerPolicy struct {
	EnginesEnabled bool             `json:"engines_enabled"`
	ShieldsEnabled bool             `json:"shields_enabled"`
	WeaponsEnabled bool             `json:"weapons_enabled"`
	SensorsEnabled bool             `json:"sensors_enabled"`
	Priority       []PowerSubsystem `json:"priority"`
}

func DefaultPowerPolicy() ShipPowerPolicy {
	return ShipPowerPolicy{
		EnginesEnabled: true,
		ShieldsEnabled: true,
		WeaponsEnabled: true,
		SensorsEnabled: true,
		Priority:       []PowerSubsystem{PowerEngines, PowerShields, PowerWeapons, PowerSensors},
	}
}

type CombatDoctrine struct {
	RangeFraction float64 `json:"range_fraction"`
	MinRangeMkm   float64 `json:"min_range_mkm"`
}

// Ship holds per-hull runtime state. Negative fuel, shields and missile ammo
// mean "full" and are resolved against the design when a game is loaded.
type Ship struct {
	ID                ID                 `json:"id"`
	Name              string             `json:"name"`
	FactionID         ID                 `json:"faction_id"`
	SystemID          ID                 `json:"system_id"`
	PositionMkm       Vec2               `json:"position_mkm"`
	DesignID          string             `json:"design_id"`
	SpeedKmS          float64            `json:"speed_km_s"`
	VelocityMkmPerDay Vec2               `json:"velocity_mkm_per_day"`
	Cargo             map[string]float64 `json:"cargo,omitempty"`
	Troops            float64            `json:"troops"`
	ColonistsMillions float64            `json:"colonists_millions"`

	AutoExplore bool `json:"auto_explore,omitempty"`
	AutoFreight bool `json:"auto_freight,omitempty"`
	AutoSalvage bool `json:"auto_salvage,omitempty"`
	AutoRefuel  bool `json:"auto_refuel,omitempty"`

	PowerPolicy ShipPowerPolicy `json:"power_policy"`
	Doctrine    CombatDoctrine  `json:"combat_doctrine"`

	HP                  float64 `json:"hp"`
	FuelTons            float64 `json:"fuel_tons"`
	Shields             float64 `json:"shields"`
	MissileAmmo         int     `json:"missile_ammo"`
	MissileCooldownDays float64 `json:"missile_cooldown_days"`

	EnginesIntegrity float64 `json:"engines_integrity"`
	WeaponsIntegrity float64 `json:"weapons_integrity"`
	SensorsIntegrity float64 `json:"sensors_integrity"`
	ShieldsIntegrity float64 `json:"shields_integrity"`
}

// NewShip returns a ship with the default runtime fields filled in.
func NewShip() Ship {
	return Ship{
		PowerPolicy:      DefaultPowerPolicy(),
		Doctrine:         CombatDoctrine{RangeFraction: 0.9, MinRangeMkm: 0.1},
		FuelTons:         -1,
		Shields:          -1,
		MissileAmmo:      -1,
		EnginesIntegrity: 1,
		WeaponsIntegrity: 1,
		SensorsIntegrity: 1,
		ShieldsIntegrity: 1,
	}
}

func (s *Ship) UnmarshalJSON(b []byte) error {
	type plain Ship
	v := plain(NewShip())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Ship(v)
	return nil
}

// CargoUsedTons sums every cargo entry.
func (s *Ship) CargoUsedTons() float64 {
	total := 0.0
	for _, k := range SortedKeys(s.Cargo) {
		total += s.Cargo[k]
	}
	return total
}

type Wreck struct {
	ID             ID                 `json:"id"`
	Name           string             `json:"name"`
	SystemID       ID                 `json:"system_id"`
	PositionMkm    Vec2               `json:"position_mkm"`
	Minerals       map[string]float64 `json:"minerals,omitempty"`
	SourceShipID   ID                 `json:"source_ship_id,omitempty"`
	SourceFaction  ID                 `json:"source_faction_id,omitempty"`
	SourceDesignID string             `json:"source_design_id,omitempty"`
	CreatedDay     int64              `json:"created_day"`
}

type Anomaly struct {
	ID                  ID                 `json:"id"`
	Name                string             `json:"name"`
	Kind                string             `json:"kind"`
	SystemID            ID                 `json:"system_id"`
	PositionMkm         Vec2               `json:"position_mkm"`
	InvestigationDays   int                `json:"investigation_days"`
	ResearchReward      float64            `json:"research_reward"`
	UnlockComponentID   string             `json:"unlock_component_id,omitempty"`
	MineralReward       map[string]float64 `json:"mineral_reward,omitempty"`
	Resolved            bool               `json:"resolved"`
	ResolvedByFactionID ID                 `json:"resolved_by_faction_id,omitempty"`
	ResolvedDay         int64              `json:"resolved_day,omitempty"`
}

type MissileSalvo struct {
	ID                ID      `json:"id"`
	SystemID          ID      `json:"system_id"`
	AttackerShipID    ID      `json:"attacker_ship_id"`
	AttackerFactionID ID      `json:"attacker_faction_id"`
	TargetShipID      ID      `json:"target_ship_id"`
	TargetFactionID   ID      `json:"target_faction_id"`
	Damage            float64 `json:"damage"`
	DamageInitial     float64 `json:"damage_initial"`
	SpeedMkmPerDay    float64 `json:"speed_mkm_per_day"`
	RangeRemainingMkm float64 `json:"range_remaining_mkm"`
	PosMkm            Vec2    `json:"pos_mkm"`
	EtaDaysTotal      float64 `json:"eta_days_total"`
	EtaDaysRemaining  float64 `json:"eta_days_remaining"`
	LaunchPosMkm      Vec2    `json:"launch_pos_mkm"`
	TargetPosMkm      Vec2    `json:"target_pos_mkm"`
}

type BuildOrder struct {
	DesignID      string  `json:"design_id"`
	TonsRemaining float64 `json:"tons_remaining"`
}

type InstallationBuildOrder struct {
	InstallationID    string  `json:"installation_id"`
	QuantityRemaining int     `json:"quantity_remaining"`
	MineralsPaid      bool    `json:"minerals_paid"`
	CPRemaining       float64 `json:"cp_remaining"`
	AutoQueued        bool    `json:"auto_queued,omitempty"` // maintained from installation targets
}

type Colony struct {
	ID                  ID                 `json:"id"`
	Name                string             `json:"name"`
	FactionID           ID                 `json:"faction_id"`
	BodyID              ID                 `json:"body_id"`
	PopulationMillions  float64            `json:"population_millions"`
	Minerals            map[string]float64 `json:"minerals,omitempty"`
	MineralReserves     map[string]float64 `json:"mineral_reserves,omitempty"`
	MineralTargets      map[string]float64 `json:"mineral_targets,omitempty"`
	Installations       map[string]int     `json:"installations,omitempty"`
	InstallationTargets map[string]int     `json:"installation_targets,omitempty"`
	GroundForces        float64            `json:"ground_forces"`

	// Queue-like.
	ShipyardQueue     []BuildOrder             `json:"shipyard_queue,omitempty"`
	ConstructionQueue []InstallationBuildOrder `json:"construction_queue,omitempty"`
}

type GroundBattle struct {
	ColonyID                  ID      `json:"colony_id"`
	SystemID                  ID      `json:"system_id"`
	AttackerFactionID         ID      `json:"attacker_faction_id"`
	DefenderFactionID         ID      `json:"defender_faction_id"`
	AttackerStrength          float64 `json:"attacker_strength"`
	DefenderStrength          float64 `json:"defender_strength"`
	FortificationDamagePoints float64 `json:"fortification_damage_points"`
	DaysFought                int     `json:"days_fought"`
}

type Contact struct {
	ShipID              ID     `json:"ship_id"`
	SystemID            ID     `json:"system_id"`
	LastSeenDay         int64  `json:"last_seen_day"`
	LastSeenPositionMkm Vec2   `json:"last_seen_position_mkm"`
	LastSeenName        string `json:"last_seen_name,omitempty"`
	LastSeenDesignID    string `json:"last_seen_design_id,omitempty"`
	LastSeenFactionID   ID     `json:"last_seen_faction_id,omitempty"`
}

type Faction struct {
	ID        ID                     `json:"id"`
	Name      string                 `json:"name"`
	Control   FactionControl         `json:"control"`
	Relations map[ID]DiplomacyStatus `json:"relations,omitempty"`

	ResearchPoints         float64 `json:"research_points"`
	ActiveResearchID       string  `json:"active_research_id,omitempty"`
	ActiveResearchProgress float64 `json:"active_research_progress"`

	// Queue-like.
	ResearchQueue []string `json:"research_queue,omitempty"`

	// Set-like.
	KnownTechs            []string `json:"known_techs,omitempty"`
	UnlockedComponents    []string `json:"unlocked_components,omitempty"`
	UnlockedInstallations []string `json:"unlocked_installations,omitempty"`
	DiscoveredSystems     []ID     `json:"discovered_systems,omitempty"`
	DiscoveredAnomalies   []ID     `json:"discovered_anomalies,omitempty"`
	SurveyedJumpPoints    []ID     `json:"surveyed_jump_points,omitempty"`

	ShipContacts          map[ID]Contact `json:"ship_contacts,omitempty"`
	OfferCooldownUntilDay map[ID]int64   `json:"diplomacy_offer_cooldown_until_day,omitempty"`
}

type Treaty struct {
	ID           ID         `json:"id"`
	FactionA     ID         `json:"faction_a"`
	FactionB     ID         `json:"faction_b"`
	Type         TreatyType `json:"type"`
	StartDay     int64      `json:"start_day"`
	DurationDays int64      `json:"duration_days"`
}

// Involves reports whether the treaty binds a and b in either order.
func (t *Treaty) Involves(a, b ID) bool {
	return (t.FactionA == a && t.FactionB == b) || (t.FactionA == b && t.FactionB == a)
}

// ActiveOn reports whether the treaty is in force on day. Durations of zero
// or less never expire.
func (t *Treaty) ActiveOn(day int64) bool {
	if day < t.StartDay {
		return false
	}
	return t.DurationDays <= 0 || day < t.StartDay+t.DurationDays
}

type DiplomaticOffer struct {
	ID                 ID         `json:"id"`
	FromFactionID      ID         `json:"from_faction_id"`
	ToFactionID        ID         `json:"to_faction_id"`
	TreatyType         TreatyType `json:"treaty_type"`
	TreatyDurationDays int64      `json:"treaty_duration_days"`
	CreatedDay         int64      `json:"created_day"`
	ExpireDay          int64      `json:"expire_day"`
	Message            string     `json:"message,omitempty"`
}

type FleetMission struct {
	Type           FleetMissionType `json:"type"`
	DefendColonyID ID               `json:"defend_colony_id,omitempty"`
	PatrolSystemID ID               `json:"patrol_system_id,omitempty"`
	PatrolLegIndex int              `json:"patrol_leg_index,omitempty"`
	HuntSystemID   ID               `json:"hunt_system_id,omitempty"`
	LastTargetShip ID               `json:"last_target_ship_id,omitempty"`
}

type Fleet struct {
	ID                  ID             `json:"id"`
	Name                string         `json:"name"`
	FactionID           ID             `json:"faction_id"`
	LeaderShipID        ID             `json:"leader_ship_id"`
	ShipIDs             []ID           `json:"ship_ids"` // set-like
	Formation           FleetFormation `json:"formation"`
	FormationSpacingMkm float64        `json:"formation_spacing_mkm"`
	Mission             FleetMission   `json:"mission"`
}

type SimEvent struct {
	Seq        uint64        `json:"seq"`
	Day        int64         `json:"day"`
	Hour       int           `json:"hour"`
	Level      EventLevel    `json:"level"`
	Category   EventCategory `json:"category"`
	FactionID  ID            `json:"faction_id,omitempty"`
	FactionID2 ID            `json:"faction_id2,omitempty"`
	SystemID   ID            `json:"system_id,omitempty"`
	ShipID     ID            `json:"ship_id,omitempty"`
	ColonyID   ID            `json:"colony_id,omitempty"`
	Message    string        `json:"message"`
}
