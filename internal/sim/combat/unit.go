package combat

import (
	"math"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

const (
	secondsPerDay = 86400.0
	kmPerMkm      = 1e6
)

// DesignFinder resolves a design id against content plus any custom designs
// carried in the game state.
type DesignFinder interface {
	FindDesign(id string) *content.ShipDesign
}

// Unit is the combat-relevant snapshot of one ship.
type Unit struct {
	ShipID model.ID

	HP          float64
	Shields     float64
	MaxHP       float64
	MaxShields  float64
	RegenPerDay float64

	BeamDamagePerDay float64
	BeamRangeMkm     float64

	MissileDamagePerSalvo float64
	MissileRangeMkm       float64
	MissileReloadDays     float64
	MissileAmmo           int // -1 = unlimited
	MissileTimerDays      float64

	PointDefensePerDay float64
	SpeedKmS           float64
}

// SubsystemMultiplier maps an integrity value to an output multiplier in [0,1].
func SubsystemMultiplier(integrity float64) float64 {
	if math.IsNaN(integrity) {
		return 1
	}
	return clamp(integrity, 0, 1)
}

// UnitFromShip snapshots a ship. ok is false when the ship has no hit points
// even after falling back to the design maximum.
func UnitFromShip(sh *model.Ship, d *content.ShipDesign) (Unit, bool) {
	if sh == nil || d == nil {
		return Unit{}, false
	}
	maxHP := math.Max(0, d.MaxHP)
	maxSh := math.Max(0, d.MaxShields)
	shieldMult := SubsystemMultiplier(sh.ShieldsIntegrity)
	weaponMult := SubsystemMultiplier(sh.WeaponsIntegrity)
	engineMult := SubsystemMultiplier(sh.EnginesIntegrity)

	hp := sh.HP
	if !finite(hp) || hp <= 0 {
		hp = maxHP
	}
	if hp <= 0 {
		return Unit{}, false
	}
	shields := sh.Shields
	if !finite(shields) || shields < 0 {
		shields = maxSh * shieldMult
	}

	u := Unit{
		ShipID:                sh.ID,
		MaxHP:                 maxHP,
		MaxShields:            maxSh * shieldMult,
		HP:                    hp,
		RegenPerDay:           math.Max(0, d.ShieldRegenPerDay) * shieldMult,
		BeamDamagePerDay:      math.Max(0, d.WeaponDamage) * weaponMult,
		BeamRangeMkm:          math.Max(0, d.WeaponRangeMkm),
		MissileDamagePerSalvo: math.Max(0, d.MissileDamage) * weaponMult,
		MissileRangeMkm:       math.Max(0, d.MissileRangeMkm),
		MissileReloadDays:     math.Max(0, d.MissileReloadDays),
		PointDefensePerDay:    math.Max(0, d.PointDefenseDamage) * weaponMult,
		MissileTimerDays:      clampFinite(sh.MissileCooldownDays, 0, 1e9, 0),
	}
	u.Shields = math.Min(u.MaxShields, math.Max(0, shields))

	if d.MissileAmmoCapacity <= 0 {
		u.MissileAmmo = -1
	} else {
		ammo := sh.MissileAmmo
		if ammo < 0 {
			ammo = d.MissileAmmoCapacity
		}
		u.MissileAmmo = min(max(ammo, 0), d.MissileAmmoCapacity)
	}

	speed := sh.SpeedKmS
	if !finite(speed) || speed <= 0 {
		speed = d.SpeedKmS
	}
	u.SpeedKmS = math.Max(0, speed) * engineMult
	return u, true
}

func (u *Unit) Alive() bool { return u.HP > 0 }

// EffectiveHP is hull plus, optionally, shields.
func (u *Unit) EffectiveHP(includeShields bool) float64 {
	v := math.Max(0, u.HP)
	if includeShields {
		v += math.Max(0, u.Shields)
	}
	return v
}

// Absorb applies dmg to shields first (when enabled) then hull and returns
// the damage left over once the unit is dead. A dead unit absorbs nothing.
func (u *Unit) Absorb(dmg float64, includeShields bool) float64 {
	if u.HP <= 0 {
		return dmg
	}
	dmg = math.Max(0, dmg)
	if dmg <= 0 {
		return 0
	}
	if includeShields && u.Shields > 0 {
		ds := math.Min(u.Shields, dmg)
		u.Shields -= ds
		dmg -= ds
	}
	if dmg > 0 && u.HP > 0 {
		dh := math.Min(u.HP, dmg)
		u.HP -= dh
		dmg -= dh
	}
	if u.HP <= 0 {
		u.HP = 0
		u.Shields = 0
	}
	return dmg
}

// Regen restores shields for dt days.
func (u *Unit) Regen(dt float64) {
	if u.HP <= 0 || u.MaxShields <= 0 {
		return
	}
	regen := math.Max(0, u.RegenPerDay)
	if regen <= 0 {
		return
	}
	u.Shields = math.Min(u.MaxShields, math.Max(0, u.Shields)+regen*dt)
}

// CanFireMissiles reports whether the unit has a usable launcher.
func (u *Unit) CanFireMissiles() bool {
	return u.MissileDamagePerSalvo > 0 && u.MissileReloadDays > 1e-6
}

// AdvanceLauncher runs the reload timer for dt days and returns how many
// salvos were launched. Ammo is consumed per salvo; a launcher that runs dry
// parks its timer at zero.
func (u *Unit) AdvanceLauncher(dt float64) int {
	if !u.CanFireMissiles() {
		return 0
	}
	fired := 0
	u.MissileTimerDays -= dt
	for guard := 0; u.MissileTimerDays <= 1e-9 && guard < 32; guard++ {
		if u.MissileAmmo == 0 {
			u.MissileTimerDays = 0
			break
		}
		fired++
		if u.MissileAmmo > 0 {
			u.MissileAmmo--
		}
		u.MissileTimerDays += u.MissileReloadDays
	}
	if u.MissileTimerDays < 0 {
		u.MissileTimerDays = 0
	}
	return fired
}

// MaxEngagementRange is the longest beam or missile range on the side.
func MaxEngagementRange(units []Unit) float64 {
	r := 0.0
	for i := range units {
		r = math.Max(r, units[i].BeamRangeMkm)
		r = math.Max(r, units[i].MissileRangeMkm)
	}
	if !finite(r) || r < 0 {
		return 0
	}
	return r
}

// KmSToMkmPerDay converts a speed in km/s using a standard 86400 s day.
func KmSToMkmPerDay(kms float64) float64 {
	if !finite(kms) || kms <= 0 {
		return 0
	}
	return kms * secondsPerDay / kmPerMkm
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func clampFinite(v, lo, hi, fallback float64) float64 {
	if !finite(v) {
		return fallback
	}
	return clamp(v, lo, hi)
}
