package combat

import (
	"math"

	"nebula4x.dev/internal/sim/model"
)

type DamageModel uint8

const (
	// FocusFire drains the weakest target first.
	FocusFire DamageModel = iota
	// EvenSpread shares damage across every living target.
	EvenSpread
)

type RangeModel uint8

const (
	// Instant puts every weapon in range from the first step.
	Instant RangeModel = iota
	// RangeAdvantage starts inside the longer envelope and lets the
	// outranged side close at its average speed.
	RangeAdvantage
)

type Winner uint8

const (
	WinnerAttacker Winner = iota
	WinnerDefender
	WinnerDraw
)

func (w Winner) String() string {
	switch w {
	case WinnerAttacker:
		return "Attacker"
	case WinnerDefender:
		return "Defender"
	default:
		return "Draw"
	}
}

func (w Winner) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

type Options struct {
	MaxDays     int         `json:"max_days"`
	DtDays      float64     `json:"dt_days"`
	DamageModel DamageModel `json:"damage_model"`
	RangeModel  RangeModel  `json:"range_model"`

	IncludeBeams        bool `json:"include_beams"`
	IncludeMissiles     bool `json:"include_missiles"`
	IncludePointDefense bool `json:"include_point_defense"`
	IncludeShields      bool `json:"include_shields"`
	IncludeShieldRegen  bool `json:"include_shield_regen"`

	RecordTimeline bool `json:"record_timeline"`
}

func DefaultOptions() Options {
	return Options{
		MaxDays:             60,
		DtDays:              0.25,
		DamageModel:         FocusFire,
		RangeModel:          Instant,
		IncludeBeams:        true,
		IncludeMissiles:     true,
		IncludePointDefense: true,
		IncludeShields:      true,
		IncludeShieldRegen:  true,
		RecordTimeline:      true,
	}
}

// SideSummary describes one side at the start and end of a forecast.
type SideSummary struct {
	StartShips int `json:"start_ships"`
	EndShips   int `json:"end_ships"`
	ShipsLost  int `json:"ships_lost"`

	StartHP      float64 `json:"start_hp"`
	StartShields float64 `json:"start_shields"`
	EndHP        float64 `json:"end_hp"`
	EndShields   float64 `json:"end_shields"`

	BeamDamagePerDay     float64 `json:"beam_damage_per_day"`
	MissileSalvoDamage   float64 `json:"missile_salvo_damage"`
	MissileReloadDaysAvg float64 `json:"missile_reload_days_avg"`
	PointDefensePerDay   float64 `json:"point_defense_per_day"`
	ShieldRegenPerDay    float64 `json:"shield_regen_per_day"`
	AvgSpeedKmS          float64 `json:"avg_speed_km_s"`
	MaxBeamRangeMkm      float64 `json:"max_beam_range_mkm"`
	MaxMissileRangeMkm   float64 `json:"max_missile_range_mkm"`
}

type Forecast struct {
	OK                 bool    `json:"ok"`
	Truncated          bool    `json:"truncated"`
	Message            string  `json:"message"`
	DaysSimulated      float64 `json:"days_simulated"`
	Winner             Winner  `json:"winner"`
	FinalSeparationMkm float64 `json:"final_separation_mkm"`

	Attacker SideSummary `json:"attacker"`
	Defender SideSummary `json:"defender"`

	// Timeline, one point per step plus the initial state.
	AttackerEffectiveHP []float64 `json:"attacker_effective_hp,omitempty"`
	DefenderEffectiveHP []float64 `json:"defender_effective_hp,omitempty"`
	AttackerShips       []int     `json:"attacker_ships,omitempty"`
	DefenderShips       []int     `json:"defender_ships,omitempty"`
	SeparationMkm       []float64 `json:"separation_mkm,omitempty"`
}

// BuildUnits snapshots the listed ships. Unknown ships, ships with unknown
// designs and ships without hit points are skipped.
func BuildUnits(st *model.GameState, designs DesignFinder, ids []model.ID) []Unit {
	out := make([]Unit, 0, len(ids))
	for _, id := range ids {
		sh := st.Ships[id]
		if sh == nil {
			continue
		}
		u, ok := UnitFromShip(sh, designs.FindDesign(sh.DesignID))
		if !ok {
			continue
		}
		out = append(out, u)
	}
	return out
}

// ForecastFleetBattle runs a side-effect free engagement between two groups
// of ships taken from st.
func ForecastFleetBattle(st *model.GameState, designs DesignFinder, attackerIDs, defenderIDs []model.ID, opt Options) Forecast {
	attacker := BuildUnits(st, designs, attackerIDs)
	if len(attacker) == 0 {
		return Forecast{Message: "Attacker: no valid ships"}
	}
	defender := BuildUnits(st, designs, defenderIDs)
	if len(defender) == 0 {
		return Forecast{Message: "Defender: no valid ships"}
	}
	return Simulate(attacker, defender, opt)
}

// ForecastFleets is ForecastFleetBattle over the members of two fleets.
func ForecastFleets(st *model.GameState, designs DesignFinder, attackerFleet, defenderFleet model.ID, opt Options) Forecast {
	af := st.Fleets[attackerFleet]
	df := st.Fleets[defenderFleet]
	if af == nil || df == nil {
		return Forecast{Message: "Invalid fleet id(s)"}
	}
	return ForecastFleetBattle(st, designs, af.ShipIDs, df.ShipIDs, opt)
}

// Simulate runs the forecast model over prepared units. The slices are
// copied; callers keep their units.
func Simulate(attackerUnits, defenderUnits []Unit, opt Options) Forecast {
	var out Forecast
	attacker := append([]Unit(nil), attackerUnits...)
	defender := append([]Unit(nil), defenderUnits...)

	maxDays := max(0, opt.MaxDays)
	dt := opt.DtDays
	if !finite(dt) || dt <= 1e-6 {
		dt = 0.25
	}
	dt = clamp(dt, 1e-3, 10)

	out.Attacker = summarizeStart(attacker)
	out.Defender = summarizeStart(defender)

	if len(attacker) == 0 || len(defender) == 0 {
		out.OK = true
		out.Winner = WinnerAttacker
		if len(attacker) == 0 {
			out.Winner = WinnerDefender
		}
		summarizeEnd(&out.Attacker, attacker)
		summarizeEnd(&out.Defender, defender)
		out.Message = "Already resolved"
		return out
	}

	separation := 0.0
	if opt.RangeModel == RangeAdvantage {
		separation = math.Max(0, math.Max(MaxEngagementRange(attacker), MaxEngagementRange(defender))*0.8)
	}

	record := func() {
		if !opt.RecordTimeline {
			return
		}
		out.AttackerEffectiveHP = append(out.AttackerEffectiveHP, sideEffectiveHP(attacker, opt.IncludeShields))
		out.DefenderEffectiveHP = append(out.DefenderEffectiveHP, sideEffectiveHP(defender, opt.IncludeShields))
		out.AttackerShips = append(out.AttackerShips, len(attacker))
		out.DefenderShips = append(out.DefenderShips, len(defender))
		out.SeparationMkm = append(out.SeparationMkm, separation)
	}
	record()

	maxSteps := int(math.Ceil(float64(maxDays) / dt))
	steps := 0
	for ; steps < maxSteps; steps++ {
		if opt.IncludeShields && opt.IncludeShieldRegen {
			for i := range attacker {
				attacker[i].Regen(dt)
			}
			for i := range defender {
				defender[i].Regen(dt)
			}
		}

		attFire := sideFire(attacker, dt, opt, separation)
		defFire := sideFire(defender, dt, opt, separation)

		attMissile := attFire.missile
		defMissile := defFire.missile
		if opt.IncludeMissiles && opt.IncludePointDefense {
			attMissile = math.Max(0, attMissile-pdCapacity(defender, dt))
			defMissile = math.Max(0, defMissile-pdCapacity(attacker, dt))
		}

		attTotal := math.Max(0, attFire.beam) + math.Max(0, attMissile)
		defTotal := math.Max(0, defFire.beam) + math.Max(0, defMissile)
		defender = applyDamage(defender, attTotal, opt.DamageModel, opt.IncludeShields)
		attacker = applyDamage(attacker, defTotal, opt.DamageModel, opt.IncludeShields)

		if len(attacker) == 0 || len(defender) == 0 {
			break
		}
		if opt.RangeModel == RangeAdvantage {
			separation = updateSeparation(attacker, defender, separation, dt, opt)
		}
		record()
	}

	out.OK = true
	out.DaysSimulated = float64(steps) * dt
	if opt.RangeModel == RangeAdvantage {
		out.FinalSeparationMkm = separation
	}
	summarizeEnd(&out.Attacker, attacker)
	summarizeEnd(&out.Defender, defender)

	switch {
	case len(attacker) == 0 && len(defender) == 0:
		out.Winner = WinnerDraw
	case len(defender) == 0:
		out.Winner = WinnerAttacker
	case len(attacker) == 0:
		out.Winner = WinnerDefender
	default:
		out.Truncated = true
		out.Message = "Truncated (max_days reached)"
		a := sideEffectiveHP(attacker, opt.IncludeShields)
		d := sideEffectiveHP(defender, opt.IncludeShields)
		switch {
		case a > d*1.01:
			out.Winner = WinnerAttacker
		case d > a*1.01:
			out.Winner = WinnerDefender
		default:
			out.Winner = WinnerDraw
		}
		return out
	}
	out.Message = "Resolved"
	return out
}

type fire struct {
	beam    float64
	missile float64
}

func beamInRange(u *Unit, opt Options, separation float64) bool {
	if opt.RangeModel == Instant {
		return true
	}
	return u.BeamRangeMkm > 0 && separation <= u.BeamRangeMkm
}

func missileInRange(u *Unit, opt Options, separation float64) bool {
	if opt.RangeModel == Instant {
		return true
	}
	return u.MissileRangeMkm > 0 && separation <= u.MissileRangeMkm
}

func sideFire(units []Unit, dt float64, opt Options, separation float64) fire {
	var f fire
	for i := range units {
		u := &units[i]
		if !u.Alive() {
			continue
		}
		if opt.IncludeBeams && u.BeamDamagePerDay > 0 && beamInRange(u, opt, separation) {
			f.beam += u.BeamDamagePerDay * dt
		}
		if opt.IncludeMissiles && u.CanFireMissiles() && missileInRange(u, opt, separation) {
			f.missile += float64(u.AdvanceLauncher(dt)) * u.MissileDamagePerSalvo
		}
	}
	return f
}

func canProjectDamage(units []Unit, opt Options, separation float64) bool {
	for i := range units {
		u := &units[i]
		if !u.Alive() {
			continue
		}
		if opt.IncludeBeams && u.BeamDamagePerDay > 0 && beamInRange(u, opt, separation) {
			return true
		}
		if opt.IncludeMissiles && u.CanFireMissiles() && u.MissileAmmo != 0 && missileInRange(u, opt, separation) {
			return true
		}
	}
	return false
}

func pdCapacity(units []Unit, dt float64) float64 {
	total := 0.0
	for i := range units {
		if units[i].Alive() {
			total += math.Max(0, units[i].PointDefensePerDay) * dt
		}
	}
	return total
}

func sideEffectiveHP(units []Unit, includeShields bool) float64 {
	sum := 0.0
	for i := range units {
		sum += units[i].EffectiveHP(includeShields)
	}
	return sum
}

func avgSpeedKmS(units []Unit) float64 {
	sum := 0.0
	n := 0
	for i := range units {
		if s := units[i].SpeedKmS; s > 0 && finite(s) {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// updateSeparation lets the side that cannot fire close on the side that can.
// A kiter at least nearly as fast as the closer holds the range open.
func updateSeparation(attacker, defender []Unit, separation, dt float64, opt Options) float64 {
	attCan := canProjectDamage(attacker, opt, separation)
	defCan := canProjectDamage(defender, opt, separation)
	if attCan == defCan {
		return separation
	}
	closer, kiter := attacker, defender
	if attCan {
		closer, kiter = defender, attacker
	}
	closing := KmSToMkmPerDay(avgSpeedKmS(closer))
	kiting := KmSToMkmPerDay(avgSpeedKmS(kiter))
	if closing <= 1e-9 || kiting >= 0.98*closing {
		return separation
	}
	return math.Max(0, separation-(closing-kiting)*dt)
}

func applyDamage(targets []Unit, dmg float64, dm DamageModel, includeShields bool) []Unit {
	if dmg <= 1e-9 || len(targets) == 0 {
		return targets
	}
	if dm == EvenSpread {
		for iter := 0; iter < 64 && dmg > 1e-9 && len(targets) > 0; iter++ {
			share := dmg / float64(len(targets))
			leftover := 0.0
			for i := range targets {
				leftover += targets[i].Absorb(share, includeShields)
			}
			targets = removeDead(targets)
			dmg = leftover
		}
		return targets
	}
	for dmg > 1e-9 && len(targets) > 0 {
		best := 0
		bestHP := targets[0].EffectiveHP(includeShields)
		for i := 1; i < len(targets); i++ {
			if hp := targets[i].EffectiveHP(includeShields); hp < bestHP {
				best, bestHP = i, hp
			}
		}
		dmg = targets[best].Absorb(dmg, includeShields)
		if !targets[best].Alive() {
			last := len(targets) - 1
			targets[best] = targets[last]
			targets = targets[:last]
		}
	}
	return targets
}

func removeDead(units []Unit) []Unit {
	out := units[:0]
	for _, u := range units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

func summarizeStart(units []Unit) SideSummary {
	s := SideSummary{StartShips: len(units)}
	missileN := 0
	for i := range units {
		u := &units[i]
		s.StartHP += math.Max(0, u.HP)
		s.StartShields += math.Max(0, u.Shields)
		s.BeamDamagePerDay += u.BeamDamagePerDay
		s.MissileSalvoDamage += u.MissileDamagePerSalvo
		s.PointDefensePerDay += u.PointDefensePerDay
		s.ShieldRegenPerDay += u.RegenPerDay
		s.MaxBeamRangeMkm = math.Max(s.MaxBeamRangeMkm, u.BeamRangeMkm)
		s.MaxMissileRangeMkm = math.Max(s.MaxMissileRangeMkm, u.MissileRangeMkm)
		if u.CanFireMissiles() {
			s.MissileReloadDaysAvg += u.MissileReloadDays
			missileN++
		}
	}
	if missileN > 0 {
		s.MissileReloadDaysAvg /= float64(missileN)
	}
	s.AvgSpeedKmS = avgSpeedKmS(units)
	return s
}

func summarizeEnd(s *SideSummary, units []Unit) {
	s.EndShips = len(units)
	s.ShipsLost = max(0, s.StartShips-s.EndShips)
	s.EndHP, s.EndShields = 0, 0
	for i := range units {
		s.EndHP += math.Max(0, units[i].HP)
		s.EndShields += math.Max(0, units[i].Shields)
	}
}
