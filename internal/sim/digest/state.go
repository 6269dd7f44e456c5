package digest

import (
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

const stateVersionTag = "GameStateDigestV1"

// Options selects optional parts of the state digest.
type Options struct {
	IncludeEvents  bool
	IncludeUIState bool
}

func DefaultOptions() Options {
	return Options{IncludeEvents: true, IncludeUIState: true}
}

// Part is one section of a digest report.
type Part struct {
	Label    string `json:"label"`
	Digest   uint64 `json:"digest"`
	Elements int    `json:"elements"`
}

type Report struct {
	Overall uint64 `json:"overall"`
	Parts   []Part `json:"parts"`
}

type section struct {
	label string
	count func(*model.GameState) int
	write func(*hasher, *model.GameState)
}

func sections(opt Options) []section {
	out := []section{
		{"header", func(*model.GameState) int { return 1 }, writeHeader},
	}
	if opt.IncludeUIState {
		out = append(out, section{"ui", func(*model.GameState) int { return 1 }, func(h *hasher, s *model.GameState) {
			h.id(s.SelectedSystem)
		}})
	}
	out = append(out,
		section{"systems", func(s *model.GameState) int { return len(s.Systems) }, writeSystems},
		section{"regions", func(s *model.GameState) int { return len(s.Regions) }, writeRegions},
		section{"bodies", func(s *model.GameState) int { return len(s.Bodies) }, writeBodies},
		section{"jump_points", func(s *model.GameState) int { return len(s.JumpPoints) }, writeJumpPoints},
		section{"ships", func(s *model.GameState) int { return len(s.Ships) }, writeShips},
		section{"wrecks", func(s *model.GameState) int { return len(s.Wrecks) }, writeWrecks},
		section{"anomalies", func(s *model.GameState) int { return len(s.Anomalies) }, writeAnomalies},
		section{"missile_salvos", func(s *model.GameState) int { return len(s.MissileSalvos) }, writeSalvos},
		section{"colonies", func(s *model.GameState) int { return len(s.Colonies) }, writeColonies},
		section{"factions", func(s *model.GameState) int { return len(s.Factions) }, writeFactions},
		section{"treaties", func(s *model.GameState) int { return len(s.Treaties) }, writeTreaties},
		section{"diplomatic_offers", func(s *model.GameState) int { return len(s.DiplomaticOffers) }, writeOffers},
		section{"fleets", func(s *model.GameState) int { return len(s.Fleets) }, writeFleets},
		section{"ship_orders", func(s *model.GameState) int { return len(s.ShipOrders) }, writeShipOrders},
		section{"ground_battles", func(s *model.GameState) int { return len(s.GroundBattles) }, writeGroundBattles},
		section{"custom_designs", func(s *model.GameState) int { return len(s.CustomDesigns) }, writeCustomDesigns},
	)
	if opt.IncludeEvents {
		out = append(out, section{"events", func(s *model.GameState) int { return len(s.Events) }, writeEvents})
	}
	return out
}

// GameState returns the canonical 64-bit digest of s. The result does not
// depend on map iteration order or on the order of set-like lists.
func GameState(s *model.GameState, opt Options) uint64 {
	h := newHasher()
	h.str(stateVersionTag)
	for _, sec := range sections(opt) {
		sec.write(h, s)
	}
	return h.Sum64()
}

// GameStateReport digests every section independently. Overall equals
// GameState(s, opt).
func GameStateReport(s *model.GameState, opt Options) Report {
	r := Report{Overall: GameState(s, opt)}
	for _, sec := range sections(opt) {
		h := newHasher()
		sec.write(h, s)
		r.Parts = append(r.Parts, Part{Label: sec.label, Digest: h.Sum64(), Elements: sec.count(s)})
	}
	return r
}

func writeHeader(h *hasher, s *model.GameState) {
	h.int(s.SaveVersion)
	h.i64(s.Date.DaysSinceEpoch())
	h.int(s.HourOfDay)
	h.id(s.NextID)
	h.u64(s.NextEventSeq)
}

func writeSystems(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Systems)))
	for _, id := range model.SortedKeys(s.Systems) {
		sys := s.Systems[id]
		h.id(id)
		h.str(sys.Name)
		h.id(sys.RegionID)
		h.vec2(sys.GalaxyPos)
		h.f64(sys.NebulaDensity)
		h.f64(sys.StormIntensity)
		h.i64(sys.StormStartDay)
		h.i64(sys.StormEndDay)
		h.idSet(sys.Bodies)
		h.idSet(sys.Ships)
		h.idSet(sys.JumpPoints)
	}
}

func writeRegions(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Regions)))
	for _, id := range model.SortedKeys(s.Regions) {
		r := s.Regions[id]
		h.id(id)
		h.str(r.Name)
		h.vec2(r.Center)
		h.str(r.Theme)
		h.f64(r.MineralRichnessMult)
		h.f64(r.VolatileRichnessMult)
		h.f64(r.SalvageRichnessMult)
		h.f64(r.PirateRisk)
		h.f64(r.PirateSuppression)
		h.f64(r.RuinsDensity)
	}
}

func writeBodies(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Bodies)))
	for _, id := range model.SortedKeys(s.Bodies) {
		b := s.Bodies[id]
		h.id(id)
		h.str(b.Name)
		h.u64(uint64(b.Type))
		h.id(b.SystemID)
		h.id(b.ParentBodyID)
		h.f64(b.OrbitRadiusMkm)
		h.f64(b.OrbitPeriodDays)
		h.f64(b.OrbitPhaseRadians)
		h.f64(b.OrbitEccentricity)
		h.f64(b.OrbitArgPeriapsisRadians)
		h.f64(b.MassEarths)
		h.f64(b.RadiusKm)
		h.f64(b.SurfaceTempK)
		h.f64(b.AtmosphereAtm)
		h.vec2(b.PositionMkm)
		h.floatMap(b.MineralDeposits)
	}
}

func writeJumpPoints(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.JumpPoints)))
	for _, id := range model.SortedKeys(s.JumpPoints) {
		jp := s.JumpPoints[id]
		h.id(id)
		h.str(jp.Name)
		h.id(jp.SystemID)
		h.vec2(jp.PositionMkm)
		h.id(jp.LinkedJumpID)
	}
}

func writeShips(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Ships)))
	for _, id := range model.SortedKeys(s.Ships) {
		sh := s.Ships[id]
		h.id(id)
		h.str(sh.Name)
		h.id(sh.FactionID)
		h.id(sh.SystemID)
		h.vec2(sh.PositionMkm)
		h.str(sh.DesignID)
		h.f64(sh.SpeedKmS)
		h.vec2(sh.VelocityMkmPerDay)
		h.floatMap(sh.Cargo)
		h.f64(sh.Troops)
		h.f64(sh.ColonistsMillions)
		h.bool(sh.AutoExplore)
		h.bool(sh.AutoFreight)
		h.bool(sh.AutoSalvage)
		h.bool(sh.AutoRefuel)

		p := sh.PowerPolicy
		h.bool(p.EnginesEnabled)
		h.bool(p.ShieldsEnabled)
		h.bool(p.WeaponsEnabled)
		h.bool(p.SensorsEnabled)
		h.u64(uint64(len(p.Priority)))
		for _, sub := range p.Priority {
			h.u64(uint64(sub))
		}
		h.f64(sh.Doctrine.RangeFraction)
		h.f64(sh.Doctrine.MinRangeMkm)

		h.f64(sh.HP)
		h.f64(sh.FuelTons)
		h.f64(sh.Shields)
		h.int(sh.MissileAmmo)
		h.f64(sh.MissileCooldownDays)
		h.f64(sh.EnginesIntegrity)
		h.f64(sh.WeaponsIntegrity)
		h.f64(sh.SensorsIntegrity)
		h.f64(sh.ShieldsIntegrity)
	}
}

func writeWrecks(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Wrecks)))
	for _, id := range model.SortedKeys(s.Wrecks) {
		w := s.Wrecks[id]
		h.id(id)
		h.str(w.Name)
		h.id(w.SystemID)
		h.vec2(w.PositionMkm)
		h.floatMap(w.Minerals)
		h.id(w.SourceShipID)
		h.id(w.SourceFaction)
		h.str(w.SourceDesignID)
		h.i64(w.CreatedDay)
	}
}

func writeAnomalies(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Anomalies)))
	for _, id := range model.SortedKeys(s.Anomalies) {
		a := s.Anomalies[id]
		h.id(id)
		h.str(a.Name)
		h.str(a.Kind)
		h.id(a.SystemID)
		h.vec2(a.PositionMkm)
		h.int(a.InvestigationDays)
		h.f64(a.ResearchReward)
		h.str(a.UnlockComponentID)
		h.floatMap(a.MineralReward)
		h.bool(a.Resolved)
		h.id(a.ResolvedByFactionID)
		h.i64(a.ResolvedDay)
	}
}

func writeSalvos(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.MissileSalvos)))
	for _, id := range model.SortedKeys(s.MissileSalvos) {
		m := s.MissileSalvos[id]
		h.id(id)
		h.id(m.SystemID)
		h.id(m.AttackerShipID)
		h.id(m.AttackerFactionID)
		h.id(m.TargetShipID)
		h.id(m.TargetFactionID)
		h.f64(m.Damage)
		h.f64(m.DamageInitial)
		h.f64(m.SpeedMkmPerDay)
		h.f64(m.RangeRemainingMkm)
		h.vec2(m.PosMkm)
		h.f64(m.EtaDaysTotal)
		h.f64(m.EtaDaysRemaining)
		h.vec2(m.LaunchPosMkm)
		h.vec2(m.TargetPosMkm)
	}
}

func writeColonies(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Colonies)))
	for _, id := range model.SortedKeys(s.Colonies) {
		c := s.Colonies[id]
		h.id(id)
		h.str(c.Name)
		h.id(c.FactionID)
		h.id(c.BodyID)
		h.f64(c.PopulationMillions)
		h.floatMap(c.Minerals)
		h.floatMap(c.MineralReserves)
		h.floatMap(c.MineralTargets)
		h.intMap(c.Installations)
		h.intMap(c.InstallationTargets)
		h.f64(c.GroundForces)

		h.u64(uint64(len(c.ShipyardQueue)))
		for _, bo := range c.ShipyardQueue {
			h.str(bo.DesignID)
			h.f64(bo.TonsRemaining)
		}
		h.u64(uint64(len(c.ConstructionQueue)))
		for _, io := range c.ConstructionQueue {
			h.str(io.InstallationID)
			h.int(io.QuantityRemaining)
			h.bool(io.MineralsPaid)
			h.f64(io.CPRemaining)
			h.bool(io.AutoQueued)
		}
	}
}

func writeFactions(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Factions)))
	for _, id := range model.SortedKeys(s.Factions) {
		f := s.Factions[id]
		h.id(id)
		h.str(f.Name)
		h.u64(uint64(f.Control))

		h.u64(uint64(len(f.Relations)))
		for _, other := range model.SortedKeys(f.Relations) {
			h.id(other)
			h.u64(uint64(f.Relations[other]))
		}

		h.f64(f.ResearchPoints)
		h.str(f.ActiveResearchID)
		h.f64(f.ActiveResearchProgress)
		h.strQueue(f.ResearchQueue)
		h.strSet(f.KnownTechs)
		h.strSet(f.UnlockedComponents)
		h.strSet(f.UnlockedInstallations)
		h.idSet(f.DiscoveredSystems)
		h.idSet(f.DiscoveredAnomalies)
		h.idSet(f.SurveyedJumpPoints)

		h.u64(uint64(len(f.ShipContacts)))
		for _, sid := range model.SortedKeys(f.ShipContacts) {
			c := f.ShipContacts[sid]
			h.id(sid)
			h.id(c.ShipID)
			h.id(c.SystemID)
			h.i64(c.LastSeenDay)
			h.vec2(c.LastSeenPositionMkm)
			h.str(c.LastSeenName)
			h.str(c.LastSeenDesignID)
			h.id(c.LastSeenFactionID)
		}

		h.u64(uint64(len(f.OfferCooldownUntilDay)))
		for _, other := range model.SortedKeys(f.OfferCooldownUntilDay) {
			h.id(other)
			h.i64(f.OfferCooldownUntilDay[other])
		}
	}
}

func writeTreaties(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Treaties)))
	for _, id := range model.SortedKeys(s.Treaties) {
		t := s.Treaties[id]
		h.id(id)
		h.id(t.FactionA)
		h.id(t.FactionB)
		h.u64(uint64(t.Type))
		h.i64(t.StartDay)
		h.i64(t.DurationDays)
	}
}

func writeOffers(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.DiplomaticOffers)))
	for _, id := range model.SortedKeys(s.DiplomaticOffers) {
		o := s.DiplomaticOffers[id]
		h.id(id)
		h.id(o.FromFactionID)
		h.id(o.ToFactionID)
		h.u64(uint64(o.TreatyType))
		h.i64(o.TreatyDurationDays)
		h.i64(o.CreatedDay)
		h.i64(o.ExpireDay)
		h.str(o.Message)
	}
}

func writeFleets(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Fleets)))
	for _, id := range model.SortedKeys(s.Fleets) {
		fl := s.Fleets[id]
		h.id(id)
		h.str(fl.Name)
		h.id(fl.FactionID)
		h.id(fl.LeaderShipID)
		h.idSet(fl.ShipIDs)
		h.u64(uint64(fl.Formation))
		h.f64(fl.FormationSpacingMkm)
		m := fl.Mission
		h.u64(uint64(m.Type))
		h.id(m.DefendColonyID)
		h.id(m.PatrolSystemID)
		h.int(m.PatrolLegIndex)
		h.id(m.HuntSystemID)
		h.id(m.LastTargetShip)
	}
}

func writeShipOrders(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.ShipOrders)))
	for _, id := range model.SortedKeys(s.ShipOrders) {
		so := s.ShipOrders[id]
		h.id(id)
		writeOrderList(h, so.Queue)
		h.bool(so.RepeatEnabled)
		h.int(so.RepeatCountRemaining)
		writeOrderList(h, so.RepeatTemplate)
	}
}

func writeGroundBattles(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.GroundBattles)))
	for _, id := range model.SortedKeys(s.GroundBattles) {
		b := s.GroundBattles[id]
		h.id(id)
		h.id(b.ColonyID)
		h.id(b.SystemID)
		h.id(b.AttackerFactionID)
		h.id(b.DefenderFactionID)
		h.f64(b.AttackerStrength)
		h.f64(b.DefenderStrength)
		h.f64(b.FortificationDamagePoints)
		h.int(b.DaysFought)
	}
}

func writeCustomDesigns(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.CustomDesigns)))
	for _, id := range model.SortedKeys(s.CustomDesigns) {
		writeDesign(h, s.CustomDesigns[id])
	}
}

func writeEvents(h *hasher, s *model.GameState) {
	h.u64(uint64(len(s.Events)))
	for _, ev := range s.Events {
		h.u64(ev.Seq)
		h.i64(ev.Day)
		h.int(ev.Hour)
		h.u64(uint64(ev.Level))
		h.u64(uint64(ev.Category))
		h.id(ev.FactionID)
		h.id(ev.FactionID2)
		h.id(ev.SystemID)
		h.id(ev.ShipID)
		h.id(ev.ColonyID)
		h.str(ev.Message)
	}
}

func writeDesign(h *hasher, d *content.ShipDesign) {
	h.str(d.ID)
	h.str(d.Name)
	h.str(string(d.Role))
	h.strQueue(d.Components)
	h.f64(d.MassTons)
	h.f64(d.SpeedKmS)
	h.f64(d.FuelCapacityTons)
	h.f64(d.FuelUsePerMkm)
	h.f64(d.CargoTons)
	h.f64(d.MiningTonsPerDay)
	h.f64(d.SensorRangeMkm)
	h.f64(d.ColonyCapacityMillions)
	h.f64(d.PowerGeneration)
	h.f64(d.PowerUseEngines)
	h.f64(d.PowerUseSensors)
	h.f64(d.PowerUseWeapons)
	h.f64(d.PowerUseShields)
	h.f64(d.MaxHP)
	h.f64(d.MaxShields)
	h.f64(d.ShieldRegenPerDay)
	h.f64(d.WeaponDamage)
	h.f64(d.WeaponRangeMkm)
	h.f64(d.MissileDamage)
	h.f64(d.MissileRangeMkm)
	h.f64(d.MissileSpeedMkmPerDay)
	h.f64(d.MissileReloadDays)
	h.int(d.MissileLauncherCount)
	h.int(d.MissileAmmoCapacity)
	h.f64(d.PointDefenseDamage)
	h.f64(d.PointDefenseRangeMkm)
	h.f64(d.TroopCapacity)
}
