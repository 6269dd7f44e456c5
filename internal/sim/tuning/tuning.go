package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimConfig holds the rules knobs of a simulation run. None of it is part of
// the save; two runs with different configs may diverge.
type SimConfig struct {
	SecondsPerDay float64 `yaml:"seconds_per_day"`

	ArrivalEpsilonMkm float64 `yaml:"arrival_epsilon_mkm"`
	DockingRangeMkm   float64 `yaml:"docking_range_mkm"`

	EnableBoarding            bool    `yaml:"enable_boarding"`
	BoardingRangeMkm          float64 `yaml:"boarding_range_mkm"`
	BoardingMinAttackerTroops float64 `yaml:"boarding_min_attacker_troops"`
	BoardingTargetHPFraction  float64 `yaml:"boarding_target_hp_fraction"`

	ScrapRefundFraction float64 `yaml:"scrap_refund_fraction"`

	FleetSpeedMatching    bool `yaml:"fleet_speed_matching"`
	FleetCoordinatedJumps bool `yaml:"fleet_coordinated_jumps"`
	FleetFormations       bool `yaml:"fleet_formations"`

	BlockadeRiskWeight          float64 `yaml:"blockade_risk_weight"`
	ShippingLossRiskWeight      float64 `yaml:"shipping_loss_risk_weight"`
	PirateSuppressionPowerScale float64 `yaml:"pirate_suppression_power_scale"`
	MaxEvents                   int     `yaml:"max_events"`

	CombatEnabled       bool `yaml:"combat_enabled"`
	EconomyEnabled      bool `yaml:"economy_enabled"`
	ResearchEnabled     bool `yaml:"research_enabled"`
	GroundCombatEnabled bool `yaml:"ground_combat_enabled"`

	WreckSalvageFraction   float64 `yaml:"wreck_salvage_fraction"`
	WreckDecayDays         int     `yaml:"wreck_decay_days"` // 0 keeps wrecks forever
	AnomalyResearchReward  float64 `yaml:"anomaly_research_reward"`
	GroundCombatLossPerDay float64 `yaml:"ground_combat_loss_per_day"`
	ColonyTonsPerTradeUnit float64 `yaml:"colony_tons_per_trade_unit"`
	PopulationGrowthPerDay float64 `yaml:"population_growth_rate_per_day"` // fraction of population

	// Intact fortification points divide defender losses by 1 + points x scale.
	// Surviving attackers wear fortifications down each day.
	FortificationDefenseScale         float64 `yaml:"fortification_defense_scale"`
	FortificationDamagePerStrengthDay float64 `yaml:"ground_combat_fortification_damage_per_attacker_strength_day"`

	// Orbital bombardment converts damage into ground forces, then
	// installations (hp = construction cost x factor), then population.
	BombardGroundStrengthPerDamage float64 `yaml:"bombard_ground_strength_per_damage"`
	BombardInstallationHPPerCost   float64 `yaml:"bombard_installation_hp_per_construction_cost"`
	BombardPopulationPerDamage     float64 `yaml:"bombard_population_millions_per_damage"`
}

func Defaults() SimConfig {
	return SimConfig{
		SecondsPerDay:               86400,
		ArrivalEpsilonMkm:           1e-6,
		DockingRangeMkm:             0.5,
		EnableBoarding:              true,
		BoardingRangeMkm:            0.1,
		BoardingMinAttackerTroops:   1,
		BoardingTargetHPFraction:    0.25,
		ScrapRefundFraction:         0.5,
		FleetSpeedMatching:          true,
		FleetCoordinatedJumps:       true,
		FleetFormations:             true,
		BlockadeRiskWeight:          0.25,
		ShippingLossRiskWeight:      0.35,
		PirateSuppressionPowerScale: 10,
		MaxEvents:                   4000,
		CombatEnabled:               true,
		EconomyEnabled:              true,
		ResearchEnabled:             true,
		GroundCombatEnabled:         true,
		WreckSalvageFraction:        0.35,
		AnomalyResearchReward:       50,
		GroundCombatLossPerDay:      0.05,
		ColonyTonsPerTradeUnit:      50,

		FortificationDefenseScale:         0.01,
		FortificationDamagePerStrengthDay: 0.1,

		BombardGroundStrengthPerDamage: 1,
		BombardInstallationHPPerCost:   0.02,
		BombardPopulationPerDamage:     0.05,
	}
}

// Load reads a YAML config on top of Defaults; keys missing from the file
// keep their default value.
func Load(path string) (SimConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("sim.yaml: %w", err)
	}
	if cfg.SecondsPerDay <= 0 {
		return cfg, fmt.Errorf("sim.yaml: seconds_per_day must be positive")
	}
	return cfg, nil
}
