package power

import "nebula4x.dev/internal/sim/model"

// Allocation is the outcome of feeding a ship's reactor output to its
// subsystems in priority order.
type Allocation struct {
	Generation    float64
	Available     float64
	EnginesOnline bool
	ShieldsOnline bool
	WeaponsOnline bool
	SensorsOnline bool
}

// Demand is the power each subsystem asks for.
type Demand struct {
	Engines float64
	Shields float64
	Weapons float64
	Sensors float64
}

var defaultPriority = []model.PowerSubsystem{model.PowerEngines, model.PowerShields, model.PowerWeapons, model.PowerSensors}

// SanitizePriority returns a four-entry priority list: the given order with
// duplicates and unknown values dropped, completed by the default order.
func SanitizePriority(prio []model.PowerSubsystem) []model.PowerSubsystem {
	out := make([]model.PowerSubsystem, 0, len(defaultPriority))
	var seen [4]bool
	add := func(s model.PowerSubsystem) {
		if int(s) >= len(seen) || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range prio {
		add(s)
	}
	for _, s := range defaultPriority {
		add(s)
	}
	return out
}

// Allocate feeds generation to each enabled subsystem in priority order. A
// subsystem whose demand does not fit in what is left goes offline; demands
// at or below 1e-9 are free.
func Allocate(generation float64, d Demand, policy model.ShipPowerPolicy) Allocation {
	out := Allocation{
		Generation:    max(0, generation),
		EnginesOnline: policy.EnginesEnabled,
		ShieldsOnline: policy.ShieldsEnabled,
		WeaponsOnline: policy.WeaponsEnabled,
		SensorsOnline: policy.SensorsEnabled,
	}
	avail := out.Generation

	consume := func(req float64, online *bool) {
		req = max(0, req)
		if !*online || req <= 1e-9 {
			return
		}
		if req <= avail+1e-9 {
			avail -= req
			return
		}
		*online = false
	}

	for _, s := range SanitizePriority(policy.Priority) {
		switch s {
		case model.PowerEngines:
			consume(d.Engines, &out.EnginesOnline)
		case model.PowerShields:
			consume(d.Shields, &out.ShieldsOnline)
		case model.PowerWeapons:
			consume(d.Weapons, &out.WeaponsOnline)
		case model.PowerSensors:
			consume(d.Sensors, &out.SensorsOnline)
		}
	}
	out.Available = avail
	return out
}
