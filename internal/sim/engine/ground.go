package engine

import (
	"fmt"
	"math"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// FortificationPoints sums the colony's fortification installations.
func (s *Simulation) FortificationPoints(c *model.Colony) float64 {
	return s.colonyInstallationSum(c, func(d *content.InstallationDef) float64 { return math.Max(0, d.FortificationPoints) })
}

// wreckFortifications removes fortification installations worth dmg points,
// rounding half a unit up. It returns the number of units destroyed.
func (s *Simulation) wreckFortifications(c *model.Colony, dmg float64) int {
	destroyed := 0
	for _, id := range model.SortedKeys(c.Installations) {
		if dmg <= 1e-9 {
			break
		}
		def := s.content.Installations[id]
		n := c.Installations[id]
		if def == nil || n <= 0 || def.FortificationPoints <= 1e-9 {
			continue
		}
		per := def.FortificationPoints
		spend := math.Min(dmg, per*float64(n))
		kill := int(math.Floor(spend/per + 1e-9))
		if kill < n && spend-float64(kill)*per >= per*0.5 {
			kill++
		}
		kill = min(max(kill, 0), n)
		if kill == 0 {
			continue
		}
		c.Installations[id] = n - kill
		if c.Installations[id] <= 0 {
			delete(c.Installations, id)
		}
		destroyed += kill
		dmg = math.Max(0, dmg-per*float64(kill))
	}
	return destroyed
}

// tickGroundCombat resolves one day of every ground battle, in colony id
// order. Each side loses GroundCombatLossPerDay times the other's strength;
// intact fortifications shield the defender.
func (s *Simulation) tickGroundCombat(dt float64) {
	if dt <= 0 {
		return
	}
	st := s.state
	loss := math.Max(0, s.cfg.GroundCombatLossPerDay) * dt
	for _, cid := range model.SortedKeys(st.GroundBattles) {
		gb := st.GroundBattles[cid]
		c := st.Colonies[cid]
		if c == nil {
			delete(st.GroundBattles, cid)
			continue
		}
		gb.AttackerStrength = math.Max(0, gb.AttackerStrength)
		gb.DefenderStrength = math.Max(0, gb.DefenderStrength)

		forts := s.FortificationPoints(c)
		gb.FortificationDamagePoints = clamp(gb.FortificationDamagePoints, 0, forts)
		bonus := 1 + (forts-gb.FortificationDamagePoints)*math.Max(0, s.cfg.FortificationDefenseScale)

		attackerLoss := math.Min(loss*gb.DefenderStrength, gb.AttackerStrength)
		defenderLoss := math.Min(loss*gb.AttackerStrength/bonus, gb.DefenderStrength)
		gb.AttackerStrength -= attackerLoss
		gb.DefenderStrength -= defenderLoss
		gb.DaysFought++
		if rate := s.cfg.FortificationDamagePerStrengthDay; rate > 0 && forts > 1e-9 && gb.AttackerStrength > 1e-9 {
			gb.FortificationDamagePoints = math.Min(forts, gb.FortificationDamagePoints+gb.AttackerStrength*rate*dt)
		}
		c.GroundForces = gb.DefenderStrength

		attackerDead := gb.AttackerStrength <= 1e-6
		defenderDead := gb.DefenderStrength <= 1e-6
		switch {
		case defenderDead && !attackerDead:
			lost := s.wreckFortifications(c, gb.FortificationDamagePoints)
			oldOwner := c.FactionID
			c.FactionID = gb.AttackerFactionID
			c.GroundForces = gb.AttackerStrength
			delete(st.GroundBattles, cid)
			msg := "Colony captured: " + c.Name
			if lost > 0 {
				msg += fmt.Sprintf(" (fortifications destroyed: %d)", lost)
			}
			s.pushEvent(model.EventWarn, model.CategoryCombat, msg,
				EventContext{FactionID: gb.AttackerFactionID, FactionID2: oldOwner, SystemID: gb.SystemID, ColonyID: cid})
			s.log.Info("colony captured", "colony", cid, "from", oldOwner, "to", gb.AttackerFactionID, "days", gb.DaysFought)
		case attackerDead:
			lost := s.wreckFortifications(c, gb.FortificationDamagePoints)
			delete(st.GroundBattles, cid)
			msg := "Invasion repelled at " + c.Name
			if lost > 0 {
				msg += fmt.Sprintf(" (fortifications destroyed: %d)", lost)
			}
			s.pushEvent(model.EventInfo, model.CategoryCombat, msg,
				EventContext{FactionID: c.FactionID, FactionID2: gb.AttackerFactionID, SystemID: gb.SystemID, ColonyID: cid})
		}
	}
}
