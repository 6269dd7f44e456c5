package combat

import (
	"testing"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

type designMap map[string]*content.ShipDesign

func (m designMap) FindDesign(id string) *content.ShipDesign { return m[id] }

func testDesigns() designMap {
	return designMap{
		"beam_100":      {ID: "beam_100", MaxHP: 100, SpeedKmS: 10, WeaponDamage: 10, WeaponRangeMkm: 10},
		"beam_100_weak": {ID: "beam_100_weak", MaxHP: 100, SpeedKmS: 10, WeaponDamage: 5, WeaponRangeMkm: 10},
		"missile_lr": {
			ID: "missile_lr", MaxHP: 60, SpeedKmS: 20,
			MissileDamage: 40, MissileRangeMkm: 100, MissileReloadDays: 1, MissileAmmoCapacity: 6,
		},
		"pd_platform":  {ID: "pd_platform", MaxHP: 120, SpeedKmS: 5, PointDefenseDamage: 200},
		"beam_sr_slow": {ID: "beam_sr_slow", MaxHP: 90, SpeedKmS: 10, WeaponDamage: 8, WeaponRangeMkm: 10},
	}
}

func addShip(st *model.GameState, id model.ID, design string) {
	sh := model.NewShip()
	sh.ID = id
	sh.Name = design
	sh.DesignID = design
	sh.Shields = 0
	st.Ships[id] = &sh
}

func newState() *model.GameState {
	st := model.NewGameState()
	st.EnsureMaps()
	return st
}

func TestForecast_BeamDuelAttackerWins(t *testing.T) {
	st := newState()
	addShip(st, 1, "beam_100")
	addShip(st, 2, "beam_100")
	addShip(st, 3, "beam_100_weak")

	opt := DefaultOptions()
	opt.MaxDays = 30
	r := ForecastFleetBattle(st, testDesigns(), []model.ID{1, 2}, []model.ID{3}, opt)
	if !r.OK {
		t.Fatalf("forecast not ok: %q", r.Message)
	}
	if r.Winner != WinnerAttacker {
		t.Fatalf("winner=%v want Attacker", r.Winner)
	}
	if r.Defender.EndShips != 0 {
		t.Fatalf("defender end ships=%d want 0", r.Defender.EndShips)
	}
	if r.Attacker.EndShips < 1 {
		t.Fatalf("attacker end ships=%d want >=1", r.Attacker.EndShips)
	}
	if r.Truncated || r.Message != "Resolved" {
		t.Fatalf("truncated=%v message=%q", r.Truncated, r.Message)
	}
	if len(r.AttackerShips) == 0 || r.AttackerShips[0] != 2 || r.DefenderShips[0] != 1 {
		t.Fatalf("timeline start: %v %v", r.AttackerShips, r.DefenderShips)
	}
}

func TestForecast_PointDefense(t *testing.T) {
	st := newState()
	addShip(st, 10, "missile_lr")
	addShip(st, 11, "pd_platform")

	opt := DefaultOptions()
	opt.MaxDays = 30
	opt.IncludeShields = false
	opt.IncludeShieldRegen = false

	opt.IncludePointDefense = false
	r := ForecastFleetBattle(st, testDesigns(), []model.ID{10}, []model.ID{11}, opt)
	if !r.OK || r.Winner != WinnerAttacker || r.Defender.EndShips != 0 {
		t.Fatalf("without PD: ok=%v winner=%v defender end=%d", r.OK, r.Winner, r.Defender.EndShips)
	}

	opt.IncludePointDefense = true
	r = ForecastFleetBattle(st, testDesigns(), []model.ID{10}, []model.ID{11}, opt)
	if !r.OK || r.Defender.EndShips != 1 {
		t.Fatalf("with PD: ok=%v defender end=%d", r.OK, r.Defender.EndShips)
	}
	if !r.Truncated {
		t.Fatalf("expected truncated forecast with PD")
	}
}

func TestForecast_RangeAdvantageKiting(t *testing.T) {
	st := newState()
	addShip(st, 20, "missile_lr")
	addShip(st, 21, "beam_sr_slow")

	opt := DefaultOptions()
	opt.MaxDays = 30
	opt.RangeModel = RangeAdvantage
	opt.IncludeShields = false
	opt.IncludeShieldRegen = false

	r := ForecastFleetBattle(st, testDesigns(), []model.ID{20}, []model.ID{21}, opt)
	if !r.OK {
		t.Fatalf("forecast not ok: %q", r.Message)
	}
	if r.Winner != WinnerAttacker || r.Defender.EndShips != 0 {
		t.Fatalf("winner=%v defender end=%d", r.Winner, r.Defender.EndShips)
	}
	if r.Attacker.EndHP != 60 {
		t.Fatalf("attacker hp=%v want untouched 60", r.Attacker.EndHP)
	}
	if r.FinalSeparationMkm != 80 {
		t.Fatalf("separation=%v want 80", r.FinalSeparationMkm)
	}
}

func TestForecast_DoubledBeamsNeverHelpDefender(t *testing.T) {
	opt := DefaultOptions()
	opt.IncludeShields = false
	opt.IncludePointDefense = false
	opt.MaxDays = 5

	cases := []struct {
		attackers, defenders int
		beam                 float64
	}{
		{1, 1, 3},
		{2, 3, 4},
		{3, 5, 2},
		{1, 4, 10},
	}
	for _, tc := range cases {
		mk := func(n int, beam float64) []Unit {
			out := make([]Unit, n)
			for i := range out {
				out[i] = Unit{ShipID: model.ID(i + 1), HP: 50, MaxHP: 50, BeamDamagePerDay: beam, BeamRangeMkm: 5}
			}
			return out
		}
		def := mk(tc.defenders, 2)
		base := Simulate(mk(tc.attackers, tc.beam), def, opt)
		doubled := Simulate(mk(tc.attackers, tc.beam*2), def, opt)
		if doubled.Defender.EndShips > base.Defender.EndShips {
			t.Fatalf("%+v: doubled beams left %d defenders, base left %d", tc, doubled.Defender.EndShips, base.Defender.EndShips)
		}
	}
}

func TestForecast_InvalidInput(t *testing.T) {
	st := newState()
	addShip(st, 1, "beam_100")

	r := ForecastFleetBattle(st, testDesigns(), []model.ID{99}, []model.ID{1}, DefaultOptions())
	if r.OK || r.Message != "Attacker: no valid ships" {
		t.Fatalf("got ok=%v message=%q", r.OK, r.Message)
	}
	r = ForecastFleets(st, testDesigns(), 5, 6, DefaultOptions())
	if r.OK || r.Message != "Invalid fleet id(s)" {
		t.Fatalf("got ok=%v message=%q", r.OK, r.Message)
	}
	r = Simulate(nil, []Unit{{HP: 10}}, DefaultOptions())
	if !r.OK || r.Winner != WinnerDefender || r.Message != "Already resolved" {
		t.Fatalf("empty attacker: %+v", r)
	}
}

func TestForecast_EvenSpreadKeepsShipsAlive(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxDays = 1
	opt.DtDays = 1
	opt.IncludeShields = false
	opt.RecordTimeline = false

	att := []Unit{{ShipID: 1, HP: 1000, BeamDamagePerDay: 60}}
	def := []Unit{{ShipID: 2, HP: 50}, {ShipID: 3, HP: 50}}

	opt.DamageModel = FocusFire
	focus := Simulate(att, def, opt)
	opt.DamageModel = EvenSpread
	even := Simulate(att, def, opt)
	if focus.Defender.EndShips != 1 {
		t.Fatalf("focus end ships=%d want 1", focus.Defender.EndShips)
	}
	if even.Defender.EndShips != 2 {
		t.Fatalf("even end ships=%d want 2", even.Defender.EndShips)
	}
	if focus.Defender.EndHP != 40 || even.Defender.EndHP != 40 {
		t.Fatalf("end hp focus=%v even=%v want 40", focus.Defender.EndHP, even.Defender.EndHP)
	}
}

func TestUnit_AbsorbAndLauncher(t *testing.T) {
	u := Unit{HP: 10, Shields: 5, MissileDamagePerSalvo: 1, MissileReloadDays: 1, MissileAmmo: 2}
	if left := u.Absorb(12, true); left != 0 || u.Shields != 0 || u.HP != 3 {
		t.Fatalf("absorb: left=%v shields=%v hp=%v", left, u.Shields, u.HP)
	}
	if left := u.Absorb(8, true); left != 5 || u.Alive() {
		t.Fatalf("overkill: left=%v hp=%v", left, u.HP)
	}

	fired := 0
	for i := 0; i < 5; i++ {
		fired += u.AdvanceLauncher(1)
	}
	if fired != 2 || u.MissileAmmo != 0 {
		t.Fatalf("fired=%d ammo=%d want 2,0", fired, u.MissileAmmo)
	}
}

func TestUnitFromShip_Defaults(t *testing.T) {
	d := &content.ShipDesign{ID: "x", MaxHP: 40, MaxShields: 20, ShieldRegenPerDay: 2, WeaponDamage: 8, SpeedKmS: 100, MissileAmmoCapacity: 4, MissileDamage: 3, MissileReloadDays: 1}
	sh := model.NewShip()
	sh.DesignID = "x"
	sh.ShieldsIntegrity = 0.5
	sh.WeaponsIntegrity = 0.25

	u, ok := UnitFromShip(&sh, d)
	if !ok {
		t.Fatalf("expected unit")
	}
	if u.HP != 40 || u.MaxShields != 10 || u.Shields != 10 || u.RegenPerDay != 1 {
		t.Fatalf("hp=%v maxShields=%v shields=%v regen=%v", u.HP, u.MaxShields, u.Shields, u.RegenPerDay)
	}
	if u.BeamDamagePerDay != 2 || u.MissileAmmo != 4 || u.SpeedKmS != 100 {
		t.Fatalf("beam=%v ammo=%d speed=%v", u.BeamDamagePerDay, u.MissileAmmo, u.SpeedKmS)
	}

	if _, ok := UnitFromShip(&sh, &content.ShipDesign{ID: "y"}); ok {
		t.Fatalf("zero-hp design should not produce a unit")
	}
}
