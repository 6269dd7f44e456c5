package engine

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"nebula4x.dev/internal/sim/combat"
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

// combatRound accumulates one day of fire before anything is applied, so
// every ship shoots with its start-of-day state.
type combatRound struct {
	incoming  map[model.ID]float64
	attackers map[model.ID][]model.ID
	bombard   map[model.ID]float64
	pdLeft    map[model.ID]float64
}

func weaponsOnline(sh *model.Ship, d *content.ShipDesign) bool {
	return d.PowerUseWeapons <= 1e-9 || shipPower(sh, d).WeaponsOnline
}

// attackOrderTarget returns the target of the ship's current AttackShip
// order, if any.
func (s *Simulation) attackOrderTarget(shipID model.ID) model.ID {
	if o, ok := s.state.ShipOrders[shipID].Front().(*model.AttackShip); ok {
		return o.TargetShipID
	}
	return model.InvalidID
}

// pickTarget chooses among detected hostiles within rangeMkm: the ordered
// attack target first, otherwise the nearest, ties broken by lower id.
func (s *Simulation) pickTarget(sh *model.Ship, hostiles []model.ID, rangeMkm float64) (model.ID, float64) {
	if rangeMkm <= 0 {
		return model.InvalidID, 0
	}
	if tid := s.attackOrderTarget(sh.ID); tid != model.InvalidID {
		if _, found := slices.BinarySearch(hostiles, tid); found {
			tgt := s.state.Ships[tid]
			if dist := sh.PositionMkm.DistTo(tgt.PositionMkm); dist <= rangeMkm+1e-9 {
				return tid, dist
			}
		}
	}
	best, bestDist := model.InvalidID, math.Inf(1)
	for _, tid := range hostiles {
		tgt := s.state.Ships[tid]
		if tgt == nil || tid == sh.ID || s.blockingTreaty(sh.FactionID, tgt.FactionID) != nil {
			continue
		}
		dist := sh.PositionMkm.DistTo(tgt.PositionMkm)
		if dist > rangeMkm+1e-9 {
			continue
		}
		if dist < bestDist || (dist == bestDist && tid < best) {
			best, bestDist = tid, dist
		}
	}
	return best, bestDist
}

// tickCombat resolves one day of weapons fire. It returns the ships that took
// damage so shield regeneration can skip them.
func (s *Simulation) tickCombat(dt float64) map[model.ID]bool {
	st := s.state
	r := &combatRound{
		incoming:  map[model.ID]float64{},
		attackers: map[model.ID][]model.ID{},
		bombard:   map[model.ID]float64{},
		pdLeft:    map[model.ID]float64{},
	}
	cache := map[sensorKey][]sensorSource{}
	hostilesFor := func(fid, sys model.ID) []model.ID { return s.detectedHostiles(fid, sys, cache) }

	s.advanceSalvos(r, dt)

	for _, aid := range model.SortedKeys(st.Ships) {
		sh := st.Ships[aid]
		d := s.FindDesign(sh.DesignID)
		if d == nil || !d.Armed() || !weaponsOnline(sh, d) {
			continue
		}
		u, ok := combat.UnitFromShip(sh, d)
		if !ok {
			continue
		}
		hostiles := hostilesFor(sh.FactionID, sh.SystemID)

		if u.BeamDamagePerDay > 0 {
			if tid, _ := s.pickTarget(sh, hostiles, u.BeamRangeMkm); tid != model.InvalidID {
				// Hold fire on a ship we mean to board.
				if tid != s.attackOrderTarget(aid) || !s.boardable(sh, st.Ships[tid]) {
					r.incoming[tid] += u.BeamDamagePerDay * dt
					r.attackers[tid] = append(r.attackers[tid], aid)
				}
			}
		}

		if u.CanFireMissiles() {
			tid, dist := s.pickTarget(sh, hostiles, u.MissileRangeMkm)
			if tid == model.InvalidID {
				u.MissileTimerDays = math.Max(0, u.MissileTimerDays-dt)
			} else {
				for n := u.AdvanceLauncher(dt); n > 0; n-- {
					s.launchSalvo(r, sh, d, &u, st.Ships[tid], dist)
				}
			}
			sh.MissileCooldownDays = u.MissileTimerDays
			if u.MissileAmmo >= 0 {
				sh.MissileAmmo = u.MissileAmmo
			}
		}

		if o, ok := st.ShipOrders[aid].Front().(*model.BombardColony); ok && u.BeamDamagePerDay > 0 {
			c := st.Colonies[o.ColonyID]
			if c != nil && c.FactionID != sh.FactionID {
				if b := st.Bodies[c.BodyID]; b != nil && b.SystemID == sh.SystemID &&
					sh.PositionMkm.DistTo(b.PositionMkm) <= u.BeamRangeMkm+1e-9 {
					r.bombard[c.ID] += u.BeamDamagePerDay * dt
					if advanceDays(&o.DurationDays, &o.ProgressDays, dt) {
						st.ShipOrders[aid].Pop()
					}
				}
			}
		}
	}

	s.colonyDefenseFire(r, dt, hostilesFor)

	damaged := s.applyShipDamage(r)
	for _, cid := range model.SortedKeys(r.bombard) {
		if c := st.Colonies[cid]; c != nil {
			s.bombardColony(c, r.bombard[cid])
		}
	}
	return damaged
}

// colonyDefenseFire lets colonies with weapon installations shoot the
// nearest detected hostile in range of their body.
func (s *Simulation) colonyDefenseFire(r *combatRound, dt float64, hostilesFor func(model.ID, model.ID) []model.ID) {
	st := s.state
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		b := st.Bodies[c.BodyID]
		if b == nil {
			continue
		}
		dmg, rng := 0.0, 0.0
		for _, id := range model.SortedKeys(c.Installations) {
			def := s.content.Installations[id]
			if def == nil || c.Installations[id] <= 0 || def.WeaponDamage <= 0 {
				continue
			}
			dmg += def.WeaponDamage * float64(c.Installations[id])
			rng = math.Max(rng, def.WeaponRangeMkm)
		}
		if dmg <= 0 || rng <= 0 {
			continue
		}
		best, bestDist := model.InvalidID, math.Inf(1)
		for _, tid := range hostilesFor(c.FactionID, b.SystemID) {
			tgt := st.Ships[tid]
			if s.blockingTreaty(c.FactionID, tgt.FactionID) != nil {
				continue
			}
			if dist := b.PositionMkm.DistTo(tgt.PositionMkm); dist <= rng+1e-9 && dist < bestDist {
				best, bestDist = tid, dist
			}
		}
		if best != model.InvalidID {
			r.incoming[best] += dmg * dt
		}
	}
}

func (s *Simulation) launchSalvo(r *combatRound, sh *model.Ship, d *content.ShipDesign, u *combat.Unit, tgt *model.Ship, dist float64) {
	m := &model.MissileSalvo{
		ID:                model.AllocateID(s.state),
		SystemID:          sh.SystemID,
		AttackerShipID:    sh.ID,
		AttackerFactionID: sh.FactionID,
		TargetShipID:      tgt.ID,
		TargetFactionID:   tgt.FactionID,
		Damage:            u.MissileDamagePerSalvo,
		DamageInitial:     u.MissileDamagePerSalvo,
		SpeedMkmPerDay:    math.Max(0, d.MissileSpeedMkmPerDay),
		RangeRemainingMkm: u.MissileRangeMkm,
		PosMkm:            sh.PositionMkm,
		LaunchPosMkm:      sh.PositionMkm,
		TargetPosMkm:      tgt.PositionMkm,
	}
	if m.SpeedMkmPerDay > 0 {
		m.EtaDaysTotal = dist / m.SpeedMkmPerDay
		m.EtaDaysRemaining = m.EtaDaysTotal
	}
	if m.EtaDaysRemaining <= 1e-9 {
		s.missileImpact(r, m)
		return
	}
	s.state.MissileSalvos[m.ID] = m
}

// advanceSalvos flies every salvo in flight toward its target's current
// position. Salvos whose target has left the system or died are dropped.
func (s *Simulation) advanceSalvos(r *combatRound, dt float64) {
	st := s.state
	for _, mid := range model.SortedKeys(st.MissileSalvos) {
		m := st.MissileSalvos[mid]
		tgt := st.Ships[m.TargetShipID]
		if tgt == nil || tgt.SystemID != m.SystemID {
			delete(st.MissileSalvos, mid)
			continue
		}
		m.TargetPosMkm = tgt.PositionMkm
		remaining := m.PosMkm.DistTo(m.TargetPosMkm)
		step := m.SpeedMkmPerDay * dt
		if step+1e-9 >= remaining {
			if remaining > m.RangeRemainingMkm+1e-9 {
				delete(st.MissileSalvos, mid)
				continue
			}
			delete(st.MissileSalvos, mid)
			m.PosMkm = m.TargetPosMkm
			s.missileImpact(r, m)
			continue
		}
		if step > m.RangeRemainingMkm {
			delete(st.MissileSalvos, mid)
			continue
		}
		m.PosMkm = m.PosMkm.Add(m.TargetPosMkm.Sub(m.PosMkm).Normalized().Scale(step))
		m.RangeRemainingMkm -= step
		m.EtaDaysRemaining = (remaining - step) / m.SpeedMkmPerDay
	}
}

// missileImpact applies point defence for the day and books the remaining
// damage against the target.
func (s *Simulation) missileImpact(r *combatRound, m *model.MissileSalvo) {
	tgt := s.state.Ships[m.TargetShipID]
	if tgt == nil {
		return
	}
	left, ok := r.pdLeft[tgt.ID]
	if !ok {
		left = s.pointDefense(tgt)
	}
	stopped := math.Min(left, m.Damage)
	r.pdLeft[tgt.ID] = left - stopped
	if dmg := m.Damage - stopped; dmg > 1e-9 {
		r.incoming[tgt.ID] += dmg
		r.attackers[tgt.ID] = append(r.attackers[tgt.ID], m.AttackerShipID)
	}
}

// pointDefense is the daily missile interception capacity covering a ship:
// its own plus that of friendly ships whose defence range reaches it.
func (s *Simulation) pointDefense(tgt *model.Ship) float64 {
	st := s.state
	sys := st.Systems[tgt.SystemID]
	if sys == nil {
		return 0
	}
	total := 0.0
	for _, sid := range model.SortUniqueIDs(slices.Clone(sys.Ships)) {
		sh := st.Ships[sid]
		if sh == nil || !s.mutualFriendly(sh.FactionID, tgt.FactionID) {
			continue
		}
		d := s.FindDesign(sh.DesignID)
		if d == nil || d.PointDefenseDamage <= 0 || !weaponsOnline(sh, d) {
			continue
		}
		if sid != tgt.ID && sh.PositionMkm.DistTo(tgt.PositionMkm) > d.PointDefenseRangeMkm+1e-9 {
			continue
		}
		total += d.PointDefenseDamage * combat.SubsystemMultiplier(sh.WeaponsIntegrity)
	}
	return total
}

// applyShipDamage applies the accumulated damage, shields first, then
// destroys every ship brought to zero hp.
func (s *Simulation) applyShipDamage(r *combatRound) map[model.ID]bool {
	st := s.state
	damaged := map[model.ID]bool{}
	var destroyed []model.ID
	for _, tid := range model.SortedKeys(r.incoming) {
		tgt := st.Ships[tid]
		dmg := r.incoming[tid]
		if tgt == nil || dmg <= 1e-12 {
			continue
		}
		damaged[tid] = true
		shieldDmg := math.Min(math.Max(0, tgt.Shields), dmg)
		tgt.Shields = math.Max(0, tgt.Shields-shieldDmg)
		hullDmg := dmg - shieldDmg
		tgt.HP -= hullDmg
		if tgt.HP <= 0 {
			destroyed = append(destroyed, tid)
			continue
		}
		s.damageEvent(tgt, hullDmg, shieldDmg, r.attackers[tid])
	}

	for _, tid := range destroyed {
		tgt := st.Ships[tid]
		ctx := EventContext{FactionID: tgt.FactionID, SystemID: tgt.SystemID, ShipID: tid}
		var msg strings.Builder
		fmt.Fprintf(&msg, "Ship destroyed: %s (%s) in %s", tgt.Name, s.factionName(tgt.FactionID), s.systemName(tgt.SystemID))
		if by := s.attackerSummary(r.attackers[tid], "killed by"); by != "" {
			msg.WriteString(by)
			ctx.FactionID2 = s.firstAttackerFaction(r.attackers[tid])
		}
		s.spawnWreck(tgt)
		s.removeShip(tid)
		s.log.Info("ship destroyed", "ship_id", tid, "system_id", ctx.SystemID, "day", st.Date.DaysSinceEpoch())
		s.pushEvent(model.EventWarn, model.CategoryCombat, msg.String(), ctx)
	}
	return damaged
}

func (s *Simulation) factionName(id model.ID) string {
	if f := s.state.Factions[id]; f != nil {
		return f.Name
	}
	return "(unknown)"
}

func (s *Simulation) firstAttackerFaction(ids []model.ID) model.ID {
	ids = model.SortUniqueIDs(slices.Clone(ids))
	if len(ids) > 0 {
		if a := s.state.Ships[ids[0]]; a != nil {
			return a.FactionID
		}
	}
	return model.InvalidID
}

// attackerSummary renders " (verb NAME / FACTION +N more)".
func (s *Simulation) attackerSummary(ids []model.ID, verb string) string {
	ids = model.SortUniqueIDs(slices.Clone(ids))
	if len(ids) == 0 {
		return ""
	}
	a := s.state.Ships[ids[0]]
	if a == nil {
		return ""
	}
	out := fmt.Sprintf(" (%s %s / %s", verb, a.Name, s.factionName(a.FactionID))
	if len(ids) > 1 {
		out += fmt.Sprintf(" +%d more", len(ids)-1)
	}
	return out + ")"
}

func (s *Simulation) damageEvent(tgt *model.Ship, hullDmg, shieldDmg float64, attackers []model.ID) {
	maxHP, maxSh := math.Max(1, tgt.HP+hullDmg), 0.0
	if d := s.FindDesign(tgt.DesignID); d != nil {
		if d.MaxHP > 1e-9 {
			maxHP = d.MaxHP
		}
		maxSh = math.Max(0, d.MaxShields)
	}
	var msg strings.Builder
	if hullDmg > 1e-12 {
		fmt.Fprintf(&msg, "Ship damaged: %s took %.1f hull", tgt.Name, hullDmg)
		if shieldDmg > 1e-12 {
			fmt.Fprintf(&msg, " + %.1f shield", shieldDmg)
		}
		msg.WriteString(" dmg (")
	} else {
		fmt.Fprintf(&msg, "Shields hit: %s took %.1f dmg (", tgt.Name, shieldDmg)
	}
	if maxSh > 1e-9 {
		fmt.Fprintf(&msg, "Shields %.1f/%.1f, ", tgt.Shields, maxSh)
	}
	fmt.Fprintf(&msg, "HP %.1f/%.1f) in %s", tgt.HP, maxHP, s.systemName(tgt.SystemID))
	msg.WriteString(s.attackerSummary(attackers, "attacked by"))

	level := model.EventInfo
	if tgt.HP/maxHP <= 0.25 {
		level = model.EventWarn
	}
	s.pushEvent(level, model.CategoryCombat, msg.String(), EventContext{
		FactionID:  tgt.FactionID,
		FactionID2: s.firstAttackerFaction(attackers),
		SystemID:   tgt.SystemID,
		ShipID:     tgt.ID,
	})
}

// spawnWreck leaves the ship's cargo plus a share of its hull materials at
// its last position.
func (s *Simulation) spawnWreck(sh *model.Ship) {
	minerals := map[string]float64{}
	for _, k := range model.SortedKeys(sh.Cargo) {
		if v := sh.Cargo[k]; v > 1e-9 {
			minerals[k] += v
		}
	}
	d := s.FindDesign(sh.DesignID)
	if yard := s.shipyardDef(); d != nil && yard != nil && d.MassTons > 0 {
		frac := clamp(s.cfg.WreckSalvageFraction, 0, 1)
		for _, k := range model.SortedKeys(yard.BuildCostsPerTon) {
			if v := d.MassTons * yard.BuildCostsPerTon[k] * frac; v > 1e-9 {
				minerals[k] += v
			}
		}
	}
	if len(minerals) == 0 {
		return
	}
	w := &model.Wreck{
		ID:             model.AllocateID(s.state),
		Name:           "Wreck of " + sh.Name,
		SystemID:       sh.SystemID,
		PositionMkm:    sh.PositionMkm,
		Minerals:       minerals,
		SourceShipID:   sh.ID,
		SourceFaction:  sh.FactionID,
		SourceDesignID: sh.DesignID,
		CreatedDay:     s.state.Date.DaysSinceEpoch(),
	}
	s.state.Wrecks[w.ID] = w
}

type bombardTarget struct {
	id       string
	count    int
	priority int
	hp       float64
}

// bombardColony spends dmg on ground forces, then installations in priority
// order (weapons, shipyards, industry, support, the rest), then population.
func (s *Simulation) bombardColony(c *model.Colony, dmg float64) {
	if dmg <= 1e-9 {
		return
	}
	groundLost := 0.0
	if per := s.cfg.BombardGroundStrengthPerDamage; per > 0 && c.GroundForces > 0 {
		groundLost = math.Min(c.GroundForces, dmg*per)
		c.GroundForces -= groundLost
		dmg -= groundLost / per
		if gb := s.state.GroundBattles[c.ID]; gb != nil {
			gb.DefenderStrength = math.Max(0, gb.DefenderStrength-groundLost)
		}
	}

	destroyed := 0
	if hpPer := s.cfg.BombardInstallationHPPerCost; hpPer > 1e-12 && dmg > 1e-9 {
		var cands []bombardTarget
		for _, id := range model.SortedKeys(c.Installations) {
			def := s.content.Installations[id]
			if def == nil || c.Installations[id] <= 0 {
				continue
			}
			t := bombardTarget{id: id, count: c.Installations[id], priority: 4, hp: math.Max(1, def.ConstructionCost*hpPer)}
			switch {
			case def.WeaponDamage > 0 && def.WeaponRangeMkm > 0:
				t.priority = 0
			case def.BuildRateTonsPerDay > 0:
				t.priority = 1
			case def.Mining || def.ConstructionPointsPerDay > 0 || len(def.ProducesPerDay) > 0:
				t.priority = 2
			case def.ResearchPointsPerDay > 0 || def.SensorRangeMkm > 0:
				t.priority = 3
			}
			cands = append(cands, t)
		}
		slices.SortStableFunc(cands, func(a, b bombardTarget) int { return a.priority - b.priority })
		for _, t := range cands {
			if dmg <= 1e-9 {
				break
			}
			kill := int(math.Floor((dmg + 1e-9) / t.hp))
			if dmg-float64(kill)*t.hp >= 0.5*t.hp {
				kill++
			}
			kill = min(kill, t.count)
			if kill <= 0 {
				continue
			}
			c.Installations[t.id] -= kill
			if c.Installations[t.id] <= 0 {
				delete(c.Installations, t.id)
			}
			destroyed += kill
			dmg = math.Max(0, dmg-float64(kill)*t.hp)
		}
	}

	popLost := 0.0
	if per := s.cfg.BombardPopulationPerDamage; per > 0 && dmg > 1e-9 {
		popLost = math.Min(c.PopulationMillions, dmg*per)
		c.PopulationMillions -= popLost
	}

	s.pushEvent(model.EventWarn, model.CategoryCombat,
		fmt.Sprintf("Colony bombarded: %s (ground -%.1f, installations -%d, population -%.2fM)", c.Name, groundLost, destroyed, popLost),
		EventContext{FactionID: c.FactionID, SystemID: s.state.ColonySystemID(c), ColonyID: c.ID})
}

// tickShields regenerates shields on ships that took no damage today.
// Unpowered shields collapse.
func (s *Simulation) tickShields(dt float64, damaged map[model.ID]bool) {
	for _, id := range model.SortedKeys(s.state.Ships) {
		sh := s.state.Ships[id]
		d := s.FindDesign(sh.DesignID)
		if d == nil || d.MaxShields <= 0 {
			continue
		}
		if !sh.PowerPolicy.ShieldsEnabled || (d.PowerUseShields > 1e-9 && !shipPower(sh, d).ShieldsOnline) {
			sh.Shields = 0
			continue
		}
		if damaged[id] {
			continue
		}
		u, ok := combat.UnitFromShip(sh, d)
		if !ok {
			continue
		}
		u.Regen(dt)
		sh.Shields = u.Shields
	}
}

// tickWreckDecay removes wrecks older than the configured lifetime.
func (s *Simulation) tickWreckDecay() {
	if s.cfg.WreckDecayDays <= 0 {
		return
	}
	today := s.state.Date.DaysSinceEpoch()
	for _, id := range model.SortedKeys(s.state.Wrecks) {
		if today-s.state.Wrecks[id].CreatedDay >= int64(s.cfg.WreckDecayDays) {
			delete(s.state.Wrecks, id)
		}
	}
}
